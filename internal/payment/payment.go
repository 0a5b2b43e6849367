// Package payment talks to the external payment-intent provider.
//
// The provider is opaque: Cooper creates an intent before any money moves,
// queries its status, and asks for release once a milestone's conditions
// hold. Release is assumed idempotent on the provider side.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ErrUnavailable marks calls rejected locally because the provider is
// considered down.
var ErrUnavailable = errors.New("payment provider unavailable")

// Intent is the provider-side handle for a pending payment.
type Intent struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	PaymentURL       string          `json:"paymentUrl,omitempty"`
	SettlementStatus string          `json:"settlementStatus,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
}

// Provider is the contract Cooper needs from the payment service.
type Provider interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	ReleaseIntent(ctx context.Context, intentID string) error
}

// Error is a failed provider call.
type Error struct {
	// Op is the provider operation: "create", "get" or "release".
	Op string
	// StatusCode is the HTTP status returned, or zero when no response
	// arrived (network failure, timeout, open breaker).
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}
