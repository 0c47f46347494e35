package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/observability"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/discovery"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
)

var scanMinPhotos int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List eligible photo folders and exit",
	Long: `Walks the configured library subtree once and prints each folder
that meets the photo-count threshold as a JSON line on stdout.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanMinPhotos, "min-photos", 0, "Override the eligibility threshold")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newGraphClient()
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	patterns := cfg.Slideshow.ImagePatterns
	if len(patterns) == 0 {
		patterns = match.DefaultImagePatterns
	}
	matcher, err := match.NewImageMatcher(patterns)
	if err != nil {
		return err
	}

	walker := discovery.New(client, matcher, discovery.Config{
		Concurrency: cfg.Slideshow.DiscoveryConcurrency,
		Logger:      observability.Logger,
	})

	minPhotos := cfg.Slideshow.MinPhotoCount
	if scanMinPhotos > 0 {
		minPhotos = scanMinPhotos
	}

	folders, err := walker.Discover(ctx, cfg.Slideshow.BaseFolderPath, minPhotos)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, f := range folders {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("write folder: %w", err)
		}
	}

	observability.Logger.Info("scan complete",
		zap.String("root", cfg.Slideshow.BaseFolderPath),
		zap.Int("min_photos", minPhotos),
		zap.Int("folders", len(folders)))
	return nil
}
