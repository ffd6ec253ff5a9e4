package gallery

import (
	"context"
	"errors"

	"gallery/internal/auth"
	"gallery/internal/logging"
	"gallery/internal/models"
	"gallery/internal/validation"
)

type LibraryInput struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (s *Service) ListLibraries(ctx context.Context, caller *auth.Identity) ([]models.Library, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	libs, err := s.store.ListLibraries(ctx)
	if err != nil {
		return nil, storageFailure("Failed to load libraries", err)
	}
	return libs, nil
}

func (s *Service) CreateLibrary(ctx context.Context, caller *auth.Identity, in LibraryInput) (models.Library, error) {
	if err := requireAdmin(caller); err != nil {
		return models.Library{}, err
	}
	if err := validation.Struct(in); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) && verr.Fields[0] != "name" {
			return models.Library{}, newError(KindBadRequest, verr.Error())
		}
		return models.Library{}, newError(KindBadRequest, "Library name required")
	}

	lib := models.Library{
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateLibrary(ctx, &lib); err != nil {
		return models.Library{}, storageFailure("Failed to save library", err)
	}
	logging.Ctx(ctx).Info().Int64("library_id", lib.ID).Str("name", lib.Name).Msg("library created")
	return lib, nil
}

// DeleteLibrary removes the library and its media records, then their blobs.
// Deleting an id that does not exist succeeds.
func (s *Service) DeleteLibrary(ctx context.Context, caller *auth.Identity, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if id <= 0 {
		return newError(KindBadRequest, "Library ID required")
	}

	removed, err := s.store.DeleteLibrary(ctx, id)
	if err != nil {
		return storageFailure("Failed to delete library", err)
	}
	for _, m := range removed {
		s.removeBlob(ctx, m.Filename)
	}
	logging.Ctx(ctx).Info().Int64("library_id", id).Int("media_removed", len(removed)).Msg("library deleted")
	return nil
}

func (s *Service) removeBlob(ctx context.Context, filename string) {
	if err := s.blobs.Remove(filename); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("filename", filename).Msg("failed to remove blob")
	}
}
