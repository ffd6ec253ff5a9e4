package store

import (
	"context"
	"errors"

	"gallery/internal/models"
)

var (
	// ErrNotFound is returned when a record with the requested key does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
	// ErrLibraryMissing is returned when media is added to a library that does not exist.
	ErrLibraryMissing = errors.New("library does not exist")
)

// Store defines the interface for all persistence operations
type Store interface {
	// Users
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	// CreateUser assigns u.ID. Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error

	// Libraries
	ListLibraries(ctx context.Context) ([]models.Library, error)
	GetLibrary(ctx context.Context, id int64) (models.Library, error)
	CreateLibrary(ctx context.Context, l *models.Library) error
	// DeleteLibrary removes the library and every media record that belongs
	// to it, returning the removed media so callers can drop their blobs.
	DeleteLibrary(ctx context.Context, id int64) ([]models.Media, error)

	// Media
	ListMedia(ctx context.Context, filter models.MediaFilter) ([]models.Media, error)
	GetMedia(ctx context.Context, id int64) (models.Media, error)
	// AddMedia assigns IDs and persists items, all belonging to libraryID.
	// Returns ErrLibraryMissing if the library does not exist.
	AddMedia(ctx context.Context, libraryID int64, items []models.Media) ([]models.Media, error)
	DeleteMedia(ctx context.Context, id int64) (models.Media, error)

	Close() error
}
