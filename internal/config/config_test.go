package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv(PathEnvVar, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "json" || cfg.Storage.DataDir != "data" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Upload.MaxFileSize != 100<<20 {
		t.Errorf("MaxFileSize = %d", cfg.Upload.MaxFileSize)
	}
	if len(cfg.Upload.AllowedTypes) != 7 {
		t.Errorf("AllowedTypes = %v", cfg.Upload.AllowedTypes)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
server:
  port: 9090
  shutdown_timeout: 3s
logging:
  level: debug
security:
  cors_origins:
    - https://a.example
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(PathEnvVar, path)
	t.Setenv("GALLERY_LOG_LEVEL", "warn")
	t.Setenv("GALLERY_ALLOWED_TYPES", "image/png, video/mp4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090 from file", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, env should win over file", cfg.Logging.Level)
	}
	if want := []string{"image/png", "video/mp4"}; !reflect.DeepEqual(cfg.Upload.AllowedTypes, want) {
		t.Errorf("AllowedTypes = %v, want %v", cfg.Upload.AllowedTypes, want)
	}
	if want := []string{"https://a.example"}; !reflect.DeepEqual(cfg.Security.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"sqlite without dsn", func(c *Config) { c.Storage.Driver = "sqlite3" }, true},
		{"sqlite with dsn", func(c *Config) { c.Storage.Driver = "sqlite3"; c.Storage.DSN = "g.db" }, false},
		{"no types", func(c *Config) { c.Upload.AllowedTypes = nil }, true},
		{"no admin password", func(c *Config) { c.Security.AdminPassword = "" }, true},
		{"admin password over 72 bytes", func(c *Config) { c.Security.AdminPassword = strings.Repeat("x", 73) }, true},
		{"admin password of 72 bytes", func(c *Config) { c.Security.AdminPassword = strings.Repeat("x", 72) }, false},
		{"request cap below file cap", func(c *Config) { c.Upload.MaxRequestSize = c.Upload.MaxFileSize - 1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("GALLERY_SESSION_SECRET"); got != "session.secret" {
		t.Errorf("envKey = %q", got)
	}
	if got := envKey("GALLERY_UNKNOWN"); got != "" {
		t.Errorf("unknown env should map to empty, got %q", got)
	}
}
