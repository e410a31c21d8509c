package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("notebook")
	v.SetConfigType("yaml")
	v.AddConfigPath(t.TempDir())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", settings.Server.Port)
	assert.Equal(t, "notebook.db", settings.Database.Path)
	assert.Equal(t, "uploads", settings.Storage.UploadDir)
	assert.Equal(t, []string{"png", "jpg", "jpeg", "gif", "webp", "bmp"}, settings.Storage.AllowedExtensions)
	assert.Equal(t, int64(16<<20), settings.Storage.MaxUploadBytes())
	assert.True(t, settings.Folders.UniqueDates)
	assert.False(t, settings.Auth.Enabled())
	assert.Equal(t, 10*time.Minute, settings.Maintenance.OrphanGrace)
}

func TestLoad_Overrides(t *testing.T) {
	v := newTestViper(t)
	v.Set("storage.max_upload_mb", 2)
	v.Set("folders.unique_dates", false)

	settings, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), settings.Storage.MaxUploadBytes())
	assert.False(t, settings.Folders.UniqueDates)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"empty port", func(s *Settings) { s.Server.Port = " " }, "server.port"},
		{"empty upload dir", func(s *Settings) { s.Storage.UploadDir = "" }, "storage.upload_dir"},
		{"no extensions", func(s *Settings) { s.Storage.AllowedExtensions = nil }, "allowed_extensions"},
		{"zero upload limit", func(s *Settings) { s.Storage.MaxUploadMB = 0 }, "max_upload_mb"},
		{"secret without hash", func(s *Settings) { s.Auth.JWTSecret = "s3cret" }, "set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := Load(newTestViper(t))
			require.NoError(t, err)

			tt.mutate(settings)
			err = settings.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: \"9090\"\nstorage:\n  allowed_extensions: [png]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notebook.yaml"), []byte(yaml), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("notebook")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	settings, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9090", settings.Server.Port)
	assert.Equal(t, []string{"png"}, settings.Storage.AllowedExtensions)
}
