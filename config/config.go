// Package config resolves process settings once at startup. Settings are
// passed by reference to the components that need them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTEBOOK_SERVER_PORT.
const EnvPrefix = "NOTEBOOK"

// Settings holds the whole process configuration.
type Settings struct {
	Server      ServerSettings      `mapstructure:"server"`
	Database    DatabaseSettings    `mapstructure:"database"`
	Storage     StorageSettings     `mapstructure:"storage"`
	Folders     FolderSettings      `mapstructure:"folders"`
	Log         LogSettings         `mapstructure:"log"`
	Auth        AuthSettings        `mapstructure:"auth"`
	Maintenance MaintenanceSettings `mapstructure:"maintenance"`
}

type ServerSettings struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	StaticDir   string   `mapstructure:"static_dir"` // browser client, optional
}

type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

type StorageSettings struct {
	UploadDir         string   `mapstructure:"upload_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxUploadMB       int64    `mapstructure:"max_upload_mb"`
}

// MaxUploadBytes is the request size limit for uploads.
func (s StorageSettings) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

type FolderSettings struct {
	// UniqueDates enforces one folder per date label.
	UniqueDates bool `mapstructure:"unique_dates"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Pretty bool   `mapstructure:"pretty"`
}

type AuthSettings struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	OwnerPasswordHash string        `mapstructure:"owner_password_hash"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether the owner token guard is configured.
func (a AuthSettings) Enabled() bool {
	return a.JWTSecret != "" && a.OwnerPasswordHash != ""
}

type MaintenanceSettings struct {
	// OrphanGrace protects blobs younger than this from the orphan sweep so
	// that uploads still waiting for their row are left alone.
	OrphanGrace time.Duration `mapstructure:"orphan_grace"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.static_dir", "")
	v.SetDefault("database.path", "notebook.db")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.allowed_extensions", []string{"png", "jpg", "jpeg", "gif", "webp", "bmp"})
	v.SetDefault("storage.max_upload_mb", 16)
	v.SetDefault("folders.unique_dates", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.pretty", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.owner_password_hash", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("maintenance.orphan_grace", 10*time.Minute)
}

// NewViper returns a viper instance with defaults, environment overrides and
// the optional notebook.yaml config file search paths registered.
func NewViper() *viper.Viper {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("notebook")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.notebook")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (if any) and decodes v into Settings.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate rejects settings the server cannot start with.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		return errors.New("database.path must not be empty")
	}
	if strings.TrimSpace(s.Storage.UploadDir) == "" {
		return errors.New("storage.upload_dir must not be empty")
	}
	if len(s.Storage.AllowedExtensions) == 0 {
		return errors.New("storage.allowed_extensions must list at least one extension")
	}
	if s.Storage.MaxUploadMB <= 0 {
		return errors.New("storage.max_upload_mb must be positive")
	}
	if (s.Auth.JWTSecret == "") != (s.Auth.OwnerPasswordHash == "") {
		return errors.New("auth.jwt_secret and auth.owner_password_hash must be set together")
	}
	if s.Auth.Enabled() && s.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	return nil
}
