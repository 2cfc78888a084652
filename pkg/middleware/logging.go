package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type loggingRecorder struct {
	http.ResponseWriter
	status int
}

func (r *loggingRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request with method, path, status, and duration
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &loggingRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id, ok := GetRequestIDFromContext(r.Context()); ok {
				attrs = append(attrs, "request_id", id)
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Error("request failed", attrs...)
			} else {
				logger.Info("request handled", attrs...)
			}
		})
	}
}
