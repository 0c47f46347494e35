package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g.
// SPPHOTOS_SERVER_PORT=9000, SPPHOTOS_GRAPH_CLIENT_SECRET=....
const envPrefix = "SPPHOTOS"

// Load reads configuration from the given file (optional), environment
// variables and defaults, in increasing precedence of defaults < file
// < environment.
func Load(ctx context.Context, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v, Defaults())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("spphotos")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/spphotos")
		v.AddConfigPath("/etc/spphotos")
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional; only a malformed file is fatal.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so AutomaticEnv picks up keys
// that are absent from the config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)

	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)

	v.SetDefault("graph.tenant_id", d.Graph.TenantID)
	v.SetDefault("graph.client_id", d.Graph.ClientID)
	v.SetDefault("graph.client_secret", d.Graph.ClientSecret)
	v.SetDefault("graph.site_url", d.Graph.SiteURL)
	v.SetDefault("graph.library_name", d.Graph.LibraryName)
	v.SetDefault("graph.requests_per_second", d.Graph.RequestsPerSecond)

	v.SetDefault("slideshow.entry_id", d.Slideshow.EntryID)
	v.SetDefault("slideshow.base_folder_path", d.Slideshow.BaseFolderPath)
	v.SetDefault("slideshow.min_photo_count", d.Slideshow.MinPhotoCount)
	v.SetDefault("slideshow.history_size", d.Slideshow.HistorySize)
	v.SetDefault("slideshow.rotation_period", d.Slideshow.RotationPeriod)
	v.SetDefault("slideshow.discovery_concurrency", d.Slideshow.DiscoveryConcurrency)
	v.SetDefault("slideshow.image_patterns", d.Slideshow.ImagePatterns)
}
