package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/cooper/internal/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// requestInfo is filled in by inner handlers so the logging middleware,
// which runs outside the router, can report who made the request.
type requestInfo struct {
	userID string
}

const requestInfoKey contextKey = "request_info"

func setRequestUser(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// Logging logs every request with its route, status, user and duration,
// and records the request in m when it is non-nil.
func Logging(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		// Pattern is filled in by the ServeMux while routing.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(r.Method, route, rec.status, elapsed)

		attrs := []any{
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"user_id", info.userID,
			"duration_ms", elapsed.Milliseconds(),
		}
		switch {
		case rec.status >= 500:
			slog.Error("HTTP error", attrs...)
		case rec.status >= 400:
			slog.Warn("HTTP error", attrs...)
		default:
			slog.Info("HTTP ok", attrs...)
		}
	})
}

// CORS allows browser clients from origin. An empty origin disables CORS
// headers.
func CORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
