// Package config loads catalog settings in three layers: built-in defaults,
// an optional YAML file and environment variables (highest priority). A .env
// file in the working directory is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"movie-catalog/internal/validation"
)

// ConfigPathEnvVar names the variable holding an explicit config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml", "/etc/movie-catalog/config.yaml"}

type Config struct {
	Env      string         `koanf:"env" validate:"oneof=development production"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Media    MediaConfig    `koanf:"media"`
	Log      LogConfig      `koanf:"log"`
	Client   ClientConfig   `koanf:"client"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"` // requests per minute per IP, 0 disables
	MaxUploadBytes  int64         `koanf:"max_upload_bytes" validate:"min=1"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=postgres sqlite3"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type MediaConfig struct {
	Backend             string `koanf:"backend" validate:"oneof=disk cloudinary"`
	Dir                 string `koanf:"dir" validate:"required_if=Backend disk"`
	URLPrefix           string `koanf:"url_prefix" validate:"required_if=Backend disk"`
	CloudinaryCloudName string `koanf:"cloudinary_cloud_name" validate:"required_if=Backend cloudinary"`
	CloudinaryAPIKey    string `koanf:"cloudinary_api_key" validate:"required_if=Backend cloudinary"`
	CloudinaryAPISecret string `koanf:"cloudinary_api_secret" validate:"required_if=Backend cloudinary"`
	CloudinaryFolder    string `koanf:"cloudinary_folder"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// ClientConfig is read by catalogctl.
type ClientConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       300,
			MaxUploadBytes:  10 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "catalog.db",
		},
		Media: MediaConfig{
			Backend:          "disk",
			Dir:              "media",
			URLPrefix:        "/media/",
			CloudinaryFolder: "movie-catalog",
		},
		Log: LogConfig{
			Level: "info",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads .env, then builds the configuration from defaults, the config
// file and the environment, and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// legacyEnv maps well-known variable names onto config paths.
var legacyEnv = map[string]string{
	"database_url":          "database.dsn",
	"cloudinary_cloud_name": "media.cloudinary_cloud_name",
	"cloudinary_api_key":    "media.cloudinary_api_key",
	"cloudinary_api_secret": "media.cloudinary_api_secret",
}

// envTransformFunc maps CATALOG_SECTION_KEY to section.key. Variables that
// are neither catalog-prefixed nor listed in legacyEnv are skipped.
//
//   - CATALOG_SERVER_ADDR -> server.addr
//   - CATALOG_MEDIA_CLOUDINARY_API_KEY -> media.cloudinary_api_key
//   - CATALOG_ENV -> env
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	rest, ok := strings.CutPrefix(key, "catalog_")
	if !ok || rest == "" {
		return ""
	}
	if section, name, found := strings.Cut(rest, "_"); found {
		return section + "." + name
	}
	return rest
}

// splitList turns a comma-separated string (from the environment) into a
// slice at path.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
