package handlers

import (
	"encoding/json"
	"net/http"
)

// Envelope wraps every successful response body.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes data and writes it with the given status. Encoding
// happens before anything is written, so on error the response is untouched.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(append(body, '\n'))
	return err
}

// ErrorResponse writes an ErrorBody with the given status.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: errorCode, Message: message})
}
