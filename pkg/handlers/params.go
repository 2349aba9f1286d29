package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseCompoundID extracts and validates the compound ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseCompoundID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_compound_id", "Invalid compound ID format", logger)
}

// ParsePredictionID extracts and validates the prediction ID from the request path.
// Expects path parameter: id
func ParsePredictionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_prediction_id", "Invalid prediction ID format", logger)
}

// ParseJobID extracts and validates the batch job ID from the request path.
// Expects path parameter: jid
func ParseJobID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "jid", "invalid_job_id", "Invalid job ID format", logger)
}

// ParseExperimentID extracts and validates the experiment ID from the request path.
// Expects path parameter: id
func ParseExperimentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_experiment_id", "Invalid experiment ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeBadRequest(w, logger, errorCode, errorMessage)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter. A missing parameter yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// queryFloat reads an optional float query parameter.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", name)
	}
	return &v, nil
}

// parsePaging reads skip and limit, writing a 400 on malformed values.
func parsePaging(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (skip, limit int, ok bool) {
	skip, err := queryInt(r, "skip")
	if err == nil {
		limit, err = queryInt(r, "limit")
	}
	if err != nil {
		writeBadRequest(w, logger, "invalid_parameter", err.Error())
		return 0, 0, false
	}
	return skip, limit, true
}
