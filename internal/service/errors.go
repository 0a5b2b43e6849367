// Package service implements Cooper's use cases on top of storage and the
// domain engines. It is transport-agnostic: callers map the errors below to
// their own status codes.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotParticipant  = errors.New("not a participant of this event")
)

// RuleViolation is a spending or join request refused by the event's rules.
type RuleViolation struct {
	Reason string
}

func (v *RuleViolation) Error() string {
	return "denied: " + v.Reason
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidArgument("%s is required", name)
	}
	return nil
}

func requireNonNegative(name string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return invalidArgument("%s must not be negative", name)
	}
	return nil
}
