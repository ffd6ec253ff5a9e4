package gallery

import (
	"context"
	"errors"

	"gallery/internal/auth"
	"gallery/internal/logging"
	"gallery/internal/models"
	"gallery/internal/store"
	"gallery/internal/validation"
)

type UserInput struct {
	Username string `json:"username" validate:"notblank,max=100"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

func (s *Service) ListUsers(ctx context.Context, caller *auth.Identity) ([]models.SafeUser, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageFailure("Failed to load users", err)
	}
	safe := make([]models.SafeUser, len(users))
	for i, u := range users {
		safe[i] = u.Safe()
	}
	return safe, nil
}

func (s *Service) CreateUser(ctx context.Context, caller *auth.Identity, in UserInput) (models.SafeUser, error) {
	if err := requireAdmin(caller); err != nil {
		return models.SafeUser{}, err
	}
	if err := validation.Struct(in); err != nil {
		return models.SafeUser{}, newError(KindBadRequest, "Username, password, and role required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return models.SafeUser{}, newError(KindBadRequest, "Password must be at most 72 bytes")
	}
	u, err := s.addUser(ctx, in.Username, in.Password, models.ParseRole(in.Role))
	if errors.Is(err, store.ErrConflict) {
		return models.SafeUser{}, newError(KindConflict, "Username already exists")
	}
	if err != nil {
		return models.SafeUser{}, storageFailure("Failed to save user", err)
	}
	logging.Ctx(ctx).Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	return u.Safe(), nil
}

// DeleteUser removes a user. The seeded administrator cannot be deleted and
// deleting an unknown id succeeds.
func (s *Service) DeleteUser(ctx context.Context, caller *auth.Identity, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if id == models.ProtectedUserID {
		return newError(KindBadRequest, "Cannot delete default admin user")
	}
	if id <= 0 {
		return newError(KindBadRequest, "User ID required")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return storageFailure("Failed to delete user", err)
	}
	return nil
}

// SeedAdmin creates the default administrator when there are no users yet.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	u, err := s.addUser(ctx, username, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	if u.ID != models.ProtectedUserID {
		logging.Warn().Int64("user_id", u.ID).Msg("seeded admin did not receive the protected id")
	}
	logging.Info().Str("username", username).Msg("seeded default admin user")
	return nil
}

func (s *Service) addUser(ctx context.Context, username, password string, role models.Role) (models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{Username: username, Password: hash, Role: role}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}
