package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"gallery/internal/models"
)

// Identity is the authenticated caller as recorded in the session at login.
type Identity struct {
	UserID   int64       `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

func (id Identity) User() models.SafeUser {
	return models.SafeUser{ID: id.UserID, Username: id.Username, Role: id.Role}
}

// Context key for the caller identity
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity placed by the session middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
