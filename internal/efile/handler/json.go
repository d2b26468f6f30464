package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"eviction-tracker/efiling/internal/server/middleware"
)

// maxBodyBytes bounds request bodies; attachments arrive base64 encoded inside the JSON.
const maxBodyBytes = 64 << 20

type errorBody struct {
	RequestID string      `json:"request_id,omitempty"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Class   string         `json:"class,omitempty"`
	Fields  []fieldProblem `json:"fields,omitempty"`
}

type fieldProblem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail errorDetail) {
	id, _ := middleware.GetRequestID(r.Context())
	writeJSON(w, status, errorBody{RequestID: id, Error: detail})
}
