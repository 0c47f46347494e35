package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spphotos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)
	assert.Equal(t, "Documents", cfg.Graph.LibraryName)
	assert.Equal(t, "/Photos", cfg.Slideshow.BaseFolderPath)
	assert.Equal(t, 5, cfg.Slideshow.MinPhotoCount)
	assert.Equal(t, 30, cfg.Slideshow.HistorySize)
	assert.Equal(t, 10*time.Second, cfg.Slideshow.RotationPeriod)
	assert.Contains(t, cfg.Slideshow.ImagePatterns, "*.jpg")
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
graph:
  tenant_id: tenant1
  library_name: Fotos
slideshow:
  min_photo_count: 3
  rotation_period: 30s
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "tenant1", cfg.Graph.TenantID)
	assert.Equal(t, "Fotos", cfg.Graph.LibraryName)
	assert.Equal(t, 3, cfg.Slideshow.MinPhotoCount)
	assert.Equal(t, 30*time.Second, cfg.Slideshow.RotationPeriod)

	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Slideshow.HistorySize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)
	t.Setenv("SPPHOTOS_SERVER_PORT", "9100")
	t.Setenv("SPPHOTOS_GRAPH_CLIENT_SECRET", "s3cret")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Graph.ClientSecret)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(context.Background(), path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Defaults()
		c.Graph.TenantID = "tenant1"
		c.Graph.ClientID = "client1"
		c.Graph.ClientSecret = "secret1"
		c.Graph.SiteURL = "https://contoso.sharepoint.com/sites/family"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing tenant",
			mutate:  func(c *Config) { c.Graph.TenantID = "" },
			wantErr: "tenant_id",
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.Graph.ClientID = "" },
			wantErr: "client_id",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Graph.ClientSecret = "" },
			wantErr: "client_secret",
		},
		{
			name:    "missing site url",
			mutate:  func(c *Config) { c.Graph.SiteURL = "" },
			wantErr: "site_url",
		},
		{
			name:    "zero photo threshold",
			mutate:  func(c *Config) { c.Slideshow.MinPhotoCount = 0 },
			wantErr: "min_photo_count",
		},
		{
			name:    "negative history",
			mutate:  func(c *Config) { c.Slideshow.HistorySize = -1 },
			wantErr: "history_size",
		},
		{
			name:    "sub-second rotation",
			mutate:  func(c *Config) { c.Slideshow.RotationPeriod = 500 * time.Millisecond },
			wantErr: "rotation_period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
