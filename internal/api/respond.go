package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmynk/cooper/internal/auth"
	"github.com/mmynk/cooper/internal/payment"
	"github.com/mmynk/cooper/internal/service"
	"github.com/mmynk/cooper/internal/storage"
)

const maxBodyBytes = 1 << 20

// retryAfterSeconds is advertised when the payment provider is unavailable.
const retryAfterSeconds = "5"

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// decode reads a JSON request body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", service.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed request body: %v", service.ErrInvalidArgument, err)
	}
	return nil
}

// writeError maps a service error to its HTTP status and JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		violation *service.RuleViolation
		provider  *payment.Error
	)

	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusForbidden, errorBody{Error: violation.Error(), Code: "rule_violation", Reason: violation.Reason})
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthenticated"})
	case errors.Is(err, service.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Code: "not_participant"})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, service.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_argument"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "conflict"})
	case errors.As(err, &provider) && provider.Retryable():
		slog.Warn("Payment provider unavailable", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "payment provider unavailable, retry later", Code: "provider_unavailable"})
	case errors.As(err, &provider):
		slog.Error("Payment provider rejected request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "payment provider rejected the request", Code: "provider_error"})
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func requiredField(name string) error {
	return fmt.Errorf("%w: %s is required", service.ErrInvalidArgument, name)
}
