package mcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/gallery"
	"gallery/internal/models"
	"gallery/internal/store/sqlstore"
)

func setup(t *testing.T) (*Server, *gallery.Service, context.Context) {
	t.Helper()
	// Setup in-memory DB
	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := blob.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create blob storage: %v", err)
	}
	svc := gallery.New(store, blobs, gallery.Options{MaxFileSize: 1 << 20, AllowedTypes: []string{"video/mp4"}})

	admin := auth.Identity{UserID: 1, Username: "admin", Role: models.RoleAdmin}
	return NewMCPServer(svc), svc, auth.WithIdentity(context.Background(), admin)
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	textContent, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent")
	}
	return textContent.Text
}

func upload(t *testing.T, svc *gallery.Service, ctx context.Context, libraryID int64, topic string) {
	t.Helper()
	caller, _ := auth.IdentityFromContext(ctx)
	_, err := svc.Upload(ctx, &caller, gallery.UploadRequest{
		LibraryID: libraryID,
		Topic:     topic,
		Files: []gallery.UploadFile{{
			Name: topic + ".mp4", ContentType: "video/mp4", Size: 3,
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("abc"))), nil },
		}},
	})
	if err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}
}

func TestCatalogTools(t *testing.T) {
	s, svc, ctx := setup(t)
	caller, _ := auth.IdentityFromContext(ctx)

	trip, err := svc.CreateLibrary(ctx, &caller, gallery.LibraryInput{Name: "Trip"})
	if err != nil {
		t.Fatalf("Failed to create library: %v", err)
	}
	upload(t, svc, ctx, trip.ID, "Beach")
	upload(t, svc, ctx, trip.ID, "Hike")

	res, err := s.listLibrariesHandler(ctx, mcp.CallToolRequest{})
	if err != nil || res.IsError {
		t.Fatalf("list_libraries failed: %v %v", err, res)
	}
	if !strings.Contains(textOf(t, res), `"name": "Trip"`) {
		t.Errorf("Expected library in output, got: %s", textOf(t, res))
	}

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{
				"library_id": float64(trip.ID),
				"topic":      "Hike",
			},
		},
	}
	res, err = s.listMediaHandler(ctx, req)
	if err != nil || res.IsError {
		t.Fatalf("list_media failed: %v %v", err, res)
	}
	content := textOf(t, res)
	if !strings.Contains(content, "Hike.mp4") || strings.Contains(content, "Beach.mp4") {
		t.Errorf("Expected only the Hike item, got: %s", content)
	}

	req = mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{"library_id": float64(trip.ID)},
		},
	}
	res, err = s.listTopicsHandler(ctx, req)
	if err != nil || res.IsError {
		t.Fatalf("list_topics failed: %v %v", err, res)
	}
	compact := strings.Join(strings.Fields(textOf(t, res)), "")
	if compact != `["Beach","Hike"]` {
		t.Errorf("topics = %s", compact)
	}
}

func TestToolsRequireSession(t *testing.T) {
	s, _, _ := setup(t)

	res, err := s.listLibrariesHandler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}
	if !res.IsError {
		t.Fatal("Expected error without identity")
	}
	if !strings.Contains(textOf(t, res), "Not authenticated") {
		t.Errorf("unexpected message: %s", textOf(t, res))
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	s, _, _ := setup(t)
	if s.MCPServer("test") == nil {
		t.Fatal("nil server")
	}
	if s.Handler("test") == nil {
		t.Fatal("nil handler")
	}
}
