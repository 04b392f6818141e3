package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// withTimeout bounds a handler by the configured write
// timeout. On expiry http.TimeoutHandler replies 503 with a
// pre-encoded errorBody; timeoutWriter patches the missing
// Content-Type so timeouts stay JSON like every other
// response.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	body, _ := json.Marshal(
		errorBody{Error: "request timed out"},
	)

	inner := h
	if s.handlerDelay > 0 {
		// Test hook: stall so short timeouts reliably fire.
		delay := s.handlerDelay
		inner = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			h(w, r)
		}
	}

	timed := http.TimeoutHandler(
		inner, s.cfg.WriteTimeout, string(body),
	)
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			timed.ServeHTTP(&timeoutWriter{ResponseWriter: w}, r)
		},
	)
}

// timeoutWriter sets a JSON Content-Type when the wrapped
// handler replies 503 without one, which is exactly what
// http.TimeoutHandler does with its plain string body.
type timeoutWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *timeoutWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusServiceUnavailable &&
		w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
