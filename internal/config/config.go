// Package config loads and validates service configuration from a
// YAML file, environment variables and defaults.
package config

import (
	"fmt"
	"time"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Slideshow SlideshowConfig `mapstructure:"slideshow"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// RateLimitConfig configures the inbound request limiter.
type RateLimitConfig struct {
	// RPS is requests per second per server. Zero disables limiting.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// GraphConfig holds the Azure AD application credentials and the
// SharePoint location. Secrets are normally supplied via environment
// (SPPHOTOS_GRAPH_CLIENT_SECRET and friends).
type GraphConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	SiteURL      string `mapstructure:"site_url"`
	LibraryName  string `mapstructure:"library_name"`

	// RequestsPerSecond limits outbound Graph calls. Zero disables.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// SlideshowConfig configures folder discovery and rotation.
type SlideshowConfig struct {
	// EntryID names this configured instance; generated when empty.
	EntryID string `mapstructure:"entry_id"`

	BaseFolderPath string        `mapstructure:"base_folder_path"`
	MinPhotoCount  int           `mapstructure:"min_photo_count"`
	HistorySize    int           `mapstructure:"history_size"`
	RotationPeriod time.Duration `mapstructure:"rotation_period"`

	// DiscoveryConcurrency bounds parallel folder listings.
	DiscoveryConcurrency int `mapstructure:"discovery_concurrency"`

	// ImagePatterns is the filename glob allow-list; defaults to the
	// standard photo extensions.
	ImagePatterns []string `mapstructure:"image_patterns"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Graph: GraphConfig{
			LibraryName:       "Documents",
			RequestsPerSecond: 4,
		},
		Slideshow: SlideshowConfig{
			BaseFolderPath:       "/Photos",
			MinPhotoCount:        5,
			HistorySize:          30,
			RotationPeriod:       10 * time.Second,
			DiscoveryConcurrency: 4,
			ImagePatterns:        match.DefaultImagePatterns,
		},
	}
}

// Validate checks fields that have no safe default.
func (c *Config) Validate() error {
	if c.Graph.TenantID == "" {
		return fmt.Errorf("graph.tenant_id is required")
	}
	if c.Graph.ClientID == "" {
		return fmt.Errorf("graph.client_id is required")
	}
	if c.Graph.ClientSecret == "" {
		return fmt.Errorf("graph.client_secret is required")
	}
	if c.Graph.SiteURL == "" {
		return fmt.Errorf("graph.site_url is required")
	}
	if c.Slideshow.MinPhotoCount < 1 {
		return fmt.Errorf("slideshow.min_photo_count must be at least 1")
	}
	if c.Slideshow.HistorySize < 0 {
		return fmt.Errorf("slideshow.history_size must not be negative")
	}
	if c.Slideshow.RotationPeriod < time.Second {
		return fmt.Errorf("slideshow.rotation_period must be at least 1s")
	}
	return nil
}
