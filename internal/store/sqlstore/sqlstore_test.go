package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"gallery/internal/models"
	"gallery/internal/store"
)

func newMemStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dbType: Postgres}
	got := s.rebind("SELECT * FROM media WHERE library_id = ? AND topic = ?")
	want := "SELECT * FROM media WHERE library_id = $1 AND topic = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	s.dbType = SQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestUsers(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	admin := models.User{Username: "admin", Password: "hash", Role: models.RoleAdmin}
	if err := s.CreateUser(ctx, &admin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if admin.ID != 1 {
		t.Fatalf("first user id = %d, want 1", admin.ID)
	}

	dup := models.User{Username: "admin", Password: "x", Role: models.RoleClient}
	if err := s.CreateUser(ctx, &dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.Role != models.RoleAdmin || got.Password != "hash" {
		t.Fatalf("unexpected user %+v", got)
	}

	if err := s.DeleteUser(ctx, admin.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "admin"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLibraryCascade(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	trip := models.Library{Name: "Trip", CreatedAt: time.Now().UTC()}
	if err := s.CreateLibrary(ctx, &trip); err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	other := models.Library{Name: "Other", CreatedAt: time.Now().UTC()}
	_ = s.CreateLibrary(ctx, &other)

	added, err := s.AddMedia(ctx, trip.ID, []models.Media{
		{Name: "a.jpg", Filename: "1_a.jpg", Type: models.KindImage, Topic: "Beach", UploadedAt: time.Now().UTC(), Size: 10, Width: 4, Height: 3},
		{Name: "b.mp4", Filename: "2_b.mp4", Type: models.KindVideo, Topic: "Hike", UploadedAt: time.Now().UTC(), Size: 20},
	})
	if err != nil {
		t.Fatalf("AddMedia: %v", err)
	}
	if added[0].ID == added[1].ID || added[0].LibraryID != trip.ID {
		t.Fatalf("bad ids: %+v", added)
	}
	_, _ = s.AddMedia(ctx, other.ID, []models.Media{{Name: "c.jpg", Filename: "3_c.jpg", Type: models.KindImage, UploadedAt: time.Now().UTC()}})

	beach, err := s.ListMedia(ctx, models.MediaFilter{LibraryID: trip.ID, Topic: "Beach"})
	if err != nil || len(beach) != 1 || beach[0].Width != 4 {
		t.Fatalf("ListMedia filter = %+v, %v", beach, err)
	}

	removed, err := s.DeleteLibrary(ctx, trip.ID)
	if err != nil {
		t.Fatalf("DeleteLibrary: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed %d, want 2", len(removed))
	}
	if _, err := s.GetLibrary(ctx, trip.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("library still present: %v", err)
	}
	left, _ := s.ListMedia(ctx, models.MediaFilter{LibraryID: trip.ID})
	if len(left) != 0 {
		t.Fatalf("media left: %+v", left)
	}
	all, _ := s.ListMedia(ctx, models.MediaFilter{})
	if len(all) != 1 {
		t.Fatalf("unrelated media touched: %+v", all)
	}
}

func TestAddMediaMissingLibrary(t *testing.T) {
	s := newMemStore(t)
	_, err := s.AddMedia(context.Background(), 99, []models.Media{{Name: "a.jpg"}})
	if !errors.Is(err, store.ErrLibraryMissing) {
		t.Fatalf("expected ErrLibraryMissing, got %v", err)
	}
}

func TestDeleteMedia(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	lib := models.Library{Name: "Trip", CreatedAt: time.Now().UTC()}
	_ = s.CreateLibrary(ctx, &lib)
	added, _ := s.AddMedia(ctx, lib.ID, []models.Media{{Name: "a.jpg", Filename: "f", Type: models.KindImage, UploadedAt: time.Now().UTC()}})

	got, err := s.DeleteMedia(ctx, added[0].ID)
	if err != nil || got.Filename != "f" {
		t.Fatalf("DeleteMedia = %+v, %v", got, err)
	}
	if _, err := s.GetMedia(ctx, added[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.DeleteMedia(ctx, added[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
