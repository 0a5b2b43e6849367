// Package auth handles Cooper accounts and session tokens.
package auth

import (
	"context"

	"github.com/mmynk/cooper/internal/models"
)

// Authenticator registers and verifies accounts. The credential format is
// up to the implementation.
type Authenticator interface {
	// Register creates an account. Returns ErrEmailExists if the email is taken.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account matching email and credential, or
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks a credential before it is stored.
	ValidateCredential(credential string) error
}
