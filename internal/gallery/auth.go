package gallery

import (
	"context"
	"errors"
	"sync"

	"gallery/internal/auth"
	"gallery/internal/logging"
	"gallery/internal/store"
	"gallery/internal/validation"
)

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// comparePassword is swapped in tests to observe hash comparisons.
var comparePassword = auth.CheckPassword

var (
	decoyOnce sync.Once
	decoyHash string
)

// decoy returns a hash that unknown usernames are compared against, so they
// cost the same bcrypt work as a wrong password.
func decoy() string {
	decoyOnce.Do(func() {
		decoyHash, _ = auth.HashPassword("gallery-decoy-password")
	})
	return decoyHash
}

// Login verifies credentials and returns the identity to record in the
// session. Unknown users and wrong passwords get the same response after the
// same bcrypt work.
func (s *Service) Login(ctx context.Context, creds Credentials) (auth.Identity, error) {
	if err := validation.Struct(creds); err != nil {
		return auth.Identity{}, newError(KindBadRequest, "Username and password required")
	}

	u, err := s.store.GetUserByUsername(ctx, creds.Username)
	if errors.Is(err, store.ErrNotFound) {
		comparePassword(decoy(), creds.Password)
		logging.Ctx(ctx).Info().Str("username", creds.Username).Msg("failed login")
		return auth.Identity{}, newError(KindUnauthenticated, "Invalid credentials")
	}
	if err != nil {
		return auth.Identity{}, storageFailure("Internal server error", err)
	}
	if !comparePassword(u.Password, creds.Password) {
		logging.Ctx(ctx).Info().Str("username", creds.Username).Msg("failed login")
		return auth.Identity{}, newError(KindUnauthenticated, "Invalid credentials")
	}
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// CurrentUser returns the caller as recorded at login.
func (s *Service) CurrentUser(caller *auth.Identity) (auth.Identity, error) {
	if err := requireAuth(caller); err != nil {
		return auth.Identity{}, err
	}
	return *caller, nil
}
