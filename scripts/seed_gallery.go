package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"math/rand"

	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/config"
	"gallery/internal/gallery"
	"gallery/internal/models"
	"gallery/internal/store"
	"gallery/internal/store/jsonstore"
	"gallery/internal/store/sqlstore"
)

var sampleLibraries = map[string][]string{
	"Summer Trip":   {"Beach", "Hike", "Sunset"},
	"Family":        {"Birthday", "Garden"},
	"Architecture":  {"Bridges", "Towers", "Stairs"},
	"Weekend Drone": {"Coast"},
}

var sampleUsers = []gallery.UserInput{
	{Username: "viewer", Password: "viewer123", Role: "client"},
	{Username: "editor", Password: "editor123", Role: "admin"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	var st store.Store
	if cfg.Storage.Driver == "json" {
		st, err = jsonstore.New(cfg.Storage.DataDir)
	} else {
		st, err = sqlstore.New(cfg.Storage.Driver, cfg.Storage.DSN)
	}
	if err != nil {
		log.Fatalf("Could not open store: %v", err)
	}
	defer st.Close()

	blobs, err := blob.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		log.Fatalf("Could not open uploads directory: %v", err)
	}

	ctx := context.Background()
	svc := gallery.New(st, blobs, gallery.Options{
		MaxFileSize:    cfg.Upload.MaxFileSize,
		MaxRequestSize: cfg.Upload.MaxRequestSize,
		AllowedTypes:   cfg.Upload.AllowedTypes,
	})
	if err := svc.SeedAdmin(ctx, cfg.Security.AdminUsername, cfg.Security.AdminPassword); err != nil {
		log.Fatalf("Could not seed admin: %v", err)
	}
	admin := &auth.Identity{UserID: models.ProtectedUserID, Username: cfg.Security.AdminUsername, Role: models.RoleAdmin}

	for _, in := range sampleUsers {
		if _, err := svc.CreateUser(ctx, admin, in); err != nil {
			log.Printf("Skipping user %s: %v", in.Username, err)
			continue
		}
		fmt.Printf("Created user %s (%s)\n", in.Username, in.Role)
	}

	uploaded := 0
	for name, topics := range sampleLibraries {
		lib, err := svc.CreateLibrary(ctx, admin, gallery.LibraryInput{
			Name:        name,
			Description: fmt.Sprintf("Sample library with %d topics", len(topics)),
		})
		if err != nil {
			log.Printf("Error creating library %s: %v", name, err)
			continue
		}

		for _, topic := range topics {
			// Random number of images per topic (2-5)
			n := rand.Intn(4) + 2
			files := make([]gallery.UploadFile, 0, n)
			for i := 0; i < n; i++ {
				data := samplePNG(320+rand.Intn(320), 240+rand.Intn(240))
				files = append(files, gallery.UploadFile{
					Name:        fmt.Sprintf("%s %d.png", topic, i+1),
					ContentType: "image/png",
					Size:        int64(len(data)),
					Open: func() (io.ReadCloser, error) {
						return io.NopCloser(bytes.NewReader(data)), nil
					},
				})
			}

			res, err := svc.Upload(ctx, admin, gallery.UploadRequest{LibraryID: lib.ID, Topic: topic, Files: files})
			if err != nil {
				log.Printf("Error uploading %s/%s: %v", name, topic, err)
				continue
			}
			uploaded += len(res.Files)
		}
		fmt.Printf("Created library %q (ID %d)\n", lib.Name, lib.ID)
	}

	fmt.Printf("Successfully uploaded %d sample images\n", uploaded)
}

// samplePNG renders a diagonal gradient in a random hue.
func samplePNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	base := color.RGBA{R: uint8(rand.Intn(256)), G: uint8(rand.Intn(256)), B: uint8(rand.Intn(256)), A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			shade := uint8((x + y) * 255 / (w + h))
			img.Set(x, y, color.RGBA{R: base.R ^ shade, G: base.G, B: base.B ^ (255 - shade), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Fatalf("Could not encode sample image: %v", err)
	}
	return buf.Bytes()
}
