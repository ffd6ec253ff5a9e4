// Package jsonstore keeps each collection as a whole-file JSON array under a
// data directory: users.json, libraries.json and media.json. Each has a
// sibling .seq file with the highest id issued so far.
//
// Every read-modify-write runs under the collection's mutex. Operations that
// touch two collections take the locks in the order users, libraries, media.
// The store is safe for concurrent use within one process; two processes
// sharing a data directory are not coordinated.
package jsonstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gallery/internal/logging"
	"gallery/internal/metrics"
	"gallery/internal/models"
	"gallery/internal/store"
)

const backend = "json"

type Store struct {
	dir       string
	users     *collection[models.User]
	libraries *collection[models.Library]
	media     *collection[models.Media]
}

var _ store.Store = (*Store)(nil)

// New opens (and creates if needed) a JSON store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dir:       dir,
		users:     newCollection(dir, "users", func(u models.User) int64 { return u.ID }),
		libraries: newCollection(dir, "libraries", func(l models.Library) int64 { return l.ID }),
		media:     newCollection(dir, "media", func(m models.Media) int64 { return m.ID }),
	}, nil
}

func (s *Store) Close() error { return nil }

// User functions

func (s *Store) ListUsers(ctx context.Context) (_ []models.User, err error) {
	defer metrics.ObserveStore(backend, "list_users", time.Now(), &err)
	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	return s.users.load(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (_ models.User, err error) {
	defer metrics.ObserveStore(backend, "get_user", time.Now(), &err)
	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	for _, u := range s.users.load() {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) (err error) {
	defer metrics.ObserveStore(backend, "create_user", time.Now(), &err)
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	users := s.users.load()
	for _, existing := range users {
		if existing.Username == u.Username {
			return store.ErrConflict
		}
	}
	u.ID = s.users.nextID(users)
	return s.users.save(append(users, *u))
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (err error) {
	defer metrics.ObserveStore(backend, "delete_user", time.Now(), &err)
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	users := s.users.load()
	kept := users[:0:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return nil
	}
	return s.users.save(kept)
}

// Library functions

func (s *Store) ListLibraries(ctx context.Context) (_ []models.Library, err error) {
	defer metrics.ObserveStore(backend, "list_libraries", time.Now(), &err)
	s.libraries.mu.Lock()
	defer s.libraries.mu.Unlock()
	return s.libraries.load(), nil
}

func (s *Store) GetLibrary(ctx context.Context, id int64) (_ models.Library, err error) {
	defer metrics.ObserveStore(backend, "get_library", time.Now(), &err)
	s.libraries.mu.Lock()
	defer s.libraries.mu.Unlock()
	for _, l := range s.libraries.load() {
		if l.ID == id {
			return l, nil
		}
	}
	return models.Library{}, store.ErrNotFound
}

func (s *Store) CreateLibrary(ctx context.Context, l *models.Library) (err error) {
	defer metrics.ObserveStore(backend, "create_library", time.Now(), &err)
	s.libraries.mu.Lock()
	defer s.libraries.mu.Unlock()

	libs := s.libraries.load()
	l.ID = s.libraries.nextID(libs)
	return s.libraries.save(append(libs, *l))
}

// DeleteLibrary writes libraries.json then media.json while holding both
// locks. If the media write fails, libraries.json is restored from the
// snapshot taken before the change.
func (s *Store) DeleteLibrary(ctx context.Context, id int64) (_ []models.Media, err error) {
	defer metrics.ObserveStore(backend, "delete_library", time.Now(), &err)
	s.libraries.mu.Lock()
	defer s.libraries.mu.Unlock()
	s.media.mu.Lock()
	defer s.media.mu.Unlock()

	libs := s.libraries.load()
	keptLibs := make([]models.Library, 0, len(libs))
	for _, l := range libs {
		if l.ID != id {
			keptLibs = append(keptLibs, l)
		}
	}

	media := s.media.load()
	keptMedia := make([]models.Media, 0, len(media))
	var removed []models.Media
	for _, m := range media {
		if m.LibraryID == id {
			removed = append(removed, m)
		} else {
			keptMedia = append(keptMedia, m)
		}
	}

	if len(keptLibs) == len(libs) && len(removed) == 0 {
		return nil, nil
	}

	if err := s.libraries.save(keptLibs); err != nil {
		return nil, err
	}
	if err := s.media.save(keptMedia); err != nil {
		if rerr := s.libraries.save(libs); rerr != nil {
			logging.Error().Err(rerr).Int64("library_id", id).
				Msg("restoring libraries after failed media write; collections are now inconsistent")
		}
		return nil, err
	}
	return removed, nil
}

// Media functions

func (s *Store) ListMedia(ctx context.Context, filter models.MediaFilter) (_ []models.Media, err error) {
	defer metrics.ObserveStore(backend, "list_media", time.Now(), &err)
	s.media.mu.Lock()
	defer s.media.mu.Unlock()

	out := []models.Media{}
	for _, m := range s.media.load() {
		if filter.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) GetMedia(ctx context.Context, id int64) (_ models.Media, err error) {
	defer metrics.ObserveStore(backend, "get_media", time.Now(), &err)
	s.media.mu.Lock()
	defer s.media.mu.Unlock()
	for _, m := range s.media.load() {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Media{}, store.ErrNotFound
}

func (s *Store) AddMedia(ctx context.Context, libraryID int64, items []models.Media) (_ []models.Media, err error) {
	defer metrics.ObserveStore(backend, "add_media", time.Now(), &err)
	s.libraries.mu.Lock()
	defer s.libraries.mu.Unlock()
	s.media.mu.Lock()
	defer s.media.mu.Unlock()

	found := false
	for _, l := range s.libraries.load() {
		if l.ID == libraryID {
			found = true
			break
		}
	}
	if !found {
		return nil, store.ErrLibraryMissing
	}

	media := s.media.load()
	added := make([]models.Media, len(items))
	for i, it := range items {
		it.ID = s.media.nextID(media)
		it.LibraryID = libraryID
		media = append(media, it)
		added[i] = it
	}
	if err := s.media.save(media); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Store) DeleteMedia(ctx context.Context, id int64) (_ models.Media, err error) {
	defer metrics.ObserveStore(backend, "delete_media", time.Now(), &err)
	s.media.mu.Lock()
	defer s.media.mu.Unlock()

	media := s.media.load()
	var target *models.Media
	kept := make([]models.Media, 0, len(media))
	for i := range media {
		if media[i].ID == id && target == nil {
			target = &media[i]
			continue
		}
		kept = append(kept, media[i])
	}
	if target == nil {
		return models.Media{}, store.ErrNotFound
	}
	if err := s.media.save(kept); err != nil {
		return models.Media{}, err
	}
	return *target, nil
}
