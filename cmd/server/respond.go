package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dapurkita/resep/internal/pricing"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses:
// invalid input is the caller's data to fix, an unsolvable constraint is a
// well-formed request with no valid answer.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, pricing.ErrUnsolvable):
		writeJSONError(w, http.StatusUnprocessableEntity, "unsolvable_constraint", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
