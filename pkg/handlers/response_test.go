package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()

	if err := ErrorResponse(w, http.StatusConflict, "conflict", "duplicate smiles"); err != nil {
		t.Fatalf("ErrorResponse returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["error"] != "conflict" || body["message"] != "duplicate smiles" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteData_Envelope(t *testing.T) {
	w := httptest.NewRecorder()

	writeData(w, zap.NewNop(), http.StatusAccepted, map[string]int{"accepted_count": 3})

	if w.Code != http.StatusAccepted {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusAccepted)
	}

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if !body.Success || body.Data["accepted_count"] != 3 {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteJSON(w, http.StatusOK, make(chan int)); err == nil {
		t.Error("expected error for unencodable data, got nil")
	}
}

func TestWriteData_UnencodableBecomes500(t *testing.T) {
	w := httptest.NewRecorder()

	writeData(w, zap.NewNop(), http.StatusOK, map[string]any{"score": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Error != "internal_error" {
		t.Errorf("error = %q, want internal_error", body.Error)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("%w: compound 7 version 3", apperrors.ErrVersionNotFound), http.StatusNotFound, "version_not_found"},
		{apperrors.NotFoundf("compound"), http.StatusNotFound, "not_found"},
		{apperrors.Validationf("bad"), http.StatusBadRequest, "validation_error"},
		{apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{apperrors.ErrStaleVersion, http.StatusServiceUnavailable, "unavailable"},
		{apperrors.Transient(fmt.Errorf("redis down")), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		status, code := statusForError(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("statusForError(%v) = %d %q, want %d %q", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()

	writeServiceError(w, fmt.Errorf("pq: relation does not exist"), zap.NewNop(), "get compound")

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["message"] != "internal server error" {
		t.Errorf("message = %q, want generic message", body["message"])
	}
}
