package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware stamps every request with a short request ID, the
// same shape as the teacher's requestIDMiddleware (internal/interfaces/http/server.go),
// backed by google/uuid instead of a manual counter.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// responseWrapper captures the status code written, the way the teacher's
// responseWrapper does for its logging middleware.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs one structured line per request, mirroring the
// teacher's requestLoggingMiddleware but through zerolog instead of log.Printf.
func loggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			log.Info().
				Str("request_id", requestIDFrom(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("http request")
		})
	}
}

// recoverMiddleware turns a panic (spec.md §7's InternalError) into a 500
// with a structured error body instead of crashing the process, grounded on
// the teacher's responseWrapper/requestLoggingMiddleware idiom for wrapping
// the response writer.
func recoverMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Str("request_id", requestIDFrom(r)).
						Interface("panic", rec).
						Msg("recovered from panic")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(ErrorResponse{
						Errors: []ErrorDetail{{
							Code:    "internal_error",
							Message: "an unexpected error occurred",
						}},
						RequestID: requestIDFrom(r),
						Timestamp: time.Now().UTC(),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
