// Package cmd implements the spphotos command tree.
package cmd

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/config"
	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/observability"
	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/version"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/discovery"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/slideshow"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded once in the persistent pre-run and shared by all
	// subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spphotos",
	Short: "SharePoint photo-frame service",
	Long: `spphotos exposes a SharePoint document library as a rotating
photo-frame view: it discovers photo folders, picks one at random while
avoiding recently shown ones, and serves the photos through a stable
local image proxy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Context(), cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return observability.Init(cfg.Logging.Level, cfg.Logging.Encoding)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default: spphotos.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// SetVersionInfo records build metadata injected by the linker in
// main. It must run before Execute.
func SetVersionInfo(ver, commit, date string) {
	version.Version = ver
	version.Commit = commit
	version.Date = date
}

// Execute runs the command tree.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newGraphClient builds the Graph client from the loaded config.
func newGraphClient() (*graph.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	creds := graph.Credentials{
		TenantID:       cfg.Graph.TenantID,
		ClientID:       cfg.Graph.ClientID,
		ClientSecret:   cfg.Graph.ClientSecret,
		SiteURL:        cfg.Graph.SiteURL,
		LibraryName:    cfg.Graph.LibraryName,
		BaseFolderPath: cfg.Slideshow.BaseFolderPath,
	}

	return graph.NewClient(creds, graph.Options{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		Logger:            observability.Logger,
		RequestsPerSecond: cfg.Graph.RequestsPerSecond,
	}), nil
}

// newSlideshowService assembles the matcher, walker and slideshow
// service for one configured entry.
func newSlideshowService(client *graph.Client) (*slideshow.Service, error) {
	patterns := cfg.Slideshow.ImagePatterns
	if len(patterns) == 0 {
		patterns = match.DefaultImagePatterns
	}
	matcher, err := match.NewImageMatcher(patterns)
	if err != nil {
		return nil, err
	}

	walker := discovery.New(client, matcher, discovery.Config{
		Concurrency: cfg.Slideshow.DiscoveryConcurrency,
		Logger:      observability.Logger,
	})

	entryID := cfg.Slideshow.EntryID
	if entryID == "" {
		entryID = uuid.NewString()
	}

	return slideshow.New(client, walker, matcher, slideshow.Config{
		EntryID:        entryID,
		BaseFolderPath: cfg.Slideshow.BaseFolderPath,
		MinPhotoCount:  cfg.Slideshow.MinPhotoCount,
		HistorySize:    cfg.Slideshow.HistorySize,
		RotationPeriod: cfg.Slideshow.RotationPeriod,
		Rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:         observability.Logger,
	}), nil
}
