package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/storage/sqlite"
)

func newAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewPasswordAuthenticator(store, bcrypt.MinCost)
}

func TestRegister(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	user, err := a.Register(ctx, "  Alice@Example.com ", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized address", user.Email)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password stored in plaintext")
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"duplicate email", "alice@example.com", "another password", ErrEmailExists},
		{"duplicate email different case", "ALICE@example.com", "another password", ErrEmailExists},
		{"short password", "bob@example.com", "short", ErrWeakPassword},
		{"bad email", "not-an-email", "long enough", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(ctx, tt.email, "", tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	registered, err := a.Register(ctx, "carol@example.com", "Carol", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := a.Authenticate(ctx, "Carol@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("Authenticate returned %s, want %s", user.ID, registered.ID)
	}

	if _, err := a.Authenticate(ctx, "carol@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWT(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "dave@example.com"}
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Email != "dave@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTManager("test-secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := later.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := m.Validate(""); !errors.Is(err, ErrMissingToken) {
			t.Errorf("Validate error = %v, want ErrMissingToken", err)
		}
	})
}
