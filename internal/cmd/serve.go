package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/observability"
	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the photo-frame HTTP service",
	Long: `Starts the HTTP service: authenticates against Microsoft Graph,
loads the initial photo folder, and serves the slideshow API and the
local image proxy until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newGraphClient()
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	svc, err := newSlideshowService(client)
	if err != nil {
		return err
	}

	// Load an initial folder up front so the first API call already
	// has a payload. A failure here is logged, not fatal: the frame
	// can recover on the next refresh.
	if _, err := svc.RefreshRandom(ctx); err != nil {
		observability.Logger.Warn("initial folder load failed",
			zap.String("entry_id", svc.EntryID()),
			zap.Error(err))
	}

	registry := server.NewRegistry()
	registry.Add(svc)

	srv := server.New(cfg.Server, cfg.RateLimit, registry, observability.Logger)
	observability.Logger.Info("starting server",
		zap.String("addr", srv.Addr()),
		zap.String("entry_id", svc.EntryID()))
	return srv.Start(ctx)
}
