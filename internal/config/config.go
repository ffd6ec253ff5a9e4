package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "GALLERY_CONFIG"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml", "config/gallery.yaml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Upload   UploadConfig   `koanf:"upload"`
	Session  SessionConfig  `koanf:"session"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	MCP      MCPConfig      `koanf:"mcp"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	// Driver is json, sqlite3 or postgres.
	Driver     string `koanf:"driver"`
	DataDir    string `koanf:"data_dir"`
	DSN        string `koanf:"dsn"`
	UploadsDir string `koanf:"uploads_dir"`
}

type UploadConfig struct {
	MaxFileSize int64 `koanf:"max_file_size"`
	// MaxRequestSize caps a whole multipart upload request.
	MaxRequestSize int64    `koanf:"max_request_size"`
	AllowedTypes   []string `koanf:"allowed_types"`
}

type SessionConfig struct {
	// Secret signs session cookies. A random key is generated when empty.
	Secret     string        `koanf:"secret"`
	Dir        string        `koanf:"dir"`
	CookieName string        `koanf:"cookie_name"`
	MaxAge     time.Duration `koanf:"max_age"`
	Secure     bool          `koanf:"secure"`
}

type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	LoginRateLimit  int           `koanf:"login_rate_limit"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type MCPConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     5 * time.Minute,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     "json",
			DataDir:    "data",
			UploadsDir: "uploads",
		},
		Upload: UploadConfig{
			MaxFileSize:    100 << 20,
			MaxRequestSize: 1 << 30,
			AllowedTypes: []string{
				"image/jpeg", "image/png", "image/gif", "image/webp",
				"video/mp4", "video/webm", "video/ogg",
			},
		},
		Session: SessionConfig{
			Dir:        "data/sessions",
			CookieName: "gallery_session",
			MaxAge:     7 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			LoginRateLimit:  20,
			LoginRateWindow: time.Minute,
			AdminUsername:   "admin",
			AdminPassword:   "admin123",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true},
		MCP:     MCPConfig{Enabled: true},
	}
}

// Load layers defaults, an optional YAML file and GALLERY_* environment
// variables, in that order of increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("GALLERY_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envKeys = map[string]string{
	"host":              "server.host",
	"port":              "server.port",
	"read_timeout":      "server.read_timeout",
	"write_timeout":     "server.write_timeout",
	"shutdown_timeout":  "server.shutdown_timeout",
	"storage_driver":    "storage.driver",
	"data_dir":          "storage.data_dir",
	"dsn":               "storage.dsn",
	"uploads_dir":       "storage.uploads_dir",
	"max_file_size":     "upload.max_file_size",
	"max_request_size":  "upload.max_request_size",
	"allowed_types":     "upload.allowed_types",
	"session_secret":    "session.secret",
	"session_dir":       "session.dir",
	"session_cookie":    "session.cookie_name",
	"session_max_age":   "session.max_age",
	"session_secure":    "session.secure",
	"cors_origins":      "security.cors_origins",
	"login_rate_limit":  "security.login_rate_limit",
	"login_rate_window": "security.login_rate_window",
	"admin_username":    "security.admin_username",
	"admin_password":    "security.admin_password",
	"log_level":         "logging.level",
	"log_format":        "logging.format",
	"metrics_enabled":   "metrics.enabled",
	"mcp_enabled":       "mcp.enabled",
}

// envKey maps GALLERY_LOG_LEVEL to logging.level. Unknown variables are dropped.
func envKey(s string) string {
	return envKeys[strings.ToLower(strings.TrimPrefix(s, "GALLERY_"))]
}

var listKeys = []string{"upload.allowed_types", "security.cors_origins"}

// splitLists turns comma separated env values into slices.
func splitLists(k *koanf.Koanf) error {
	for _, key := range listKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "json":
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the json driver"))
		}
	case "sqlite3", "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.UploadsDir == "" {
		errs = append(errs, errors.New("storage.uploads_dir is required"))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("upload.max_file_size must be positive"))
	}
	if c.Upload.MaxRequestSize < c.Upload.MaxFileSize {
		errs = append(errs, errors.New("upload.max_request_size must be at least upload.max_file_size"))
	}
	if len(c.Upload.AllowedTypes) == 0 {
		errs = append(errs, errors.New("upload.allowed_types must not be empty"))
	}
	if c.Session.Dir == "" || c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.dir and session.cookie_name are required"))
	}
	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		errs = append(errs, errors.New("security.admin_username and security.admin_password are required"))
	}
	if len(c.Security.AdminPassword) > maxPasswordBytes {
		errs = append(errs, fmt.Errorf("security.admin_password exceeds %d bytes", maxPasswordBytes))
	}
	return errors.Join(errs...)
}
