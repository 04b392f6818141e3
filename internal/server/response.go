package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// errorBody is the JSON shape of every error response the API
// produces, including middleware-generated timeouts.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding %T response: %v", v, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// isContextError reports whether err is a cancellation or
// deadline error. Callers stop processing without writing a
// response: http.TimeoutHandler inside withTimeout owns the
// 503, and its buffered response would race with one written
// here.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
