package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/observability"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the SharePoint connection",
	Long: `Runs the connection checks in order: token acquisition, site
resolution, library resolution, and a listing of the base folder.
Each step reports what it found so a misconfigured credential or
library name is pinpointed rather than surfacing as a generic error
at runtime.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cli := observability.CLILogger

	cli.Info("=== spphotos check ===")
	cli.Info("")

	client, err := newGraphClient()
	if err != nil {
		return err
	}
	creds := client.Credentials()

	totalChecks := 4
	checkNum := 1

	// Check 1: token
	if err := client.Authenticate(ctx); err != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Acquiring access token... FAILED", checkNum, totalChecks), zap.Error(err))
		if graph.IsAuth(err) {
			cli.Info("Hint: verify tenant_id, client_id and client_secret, and that the app registration has Sites.Read.All application permission with admin consent.")
		}
		return err
	}
	cli.Info(fmt.Sprintf("[%d/%d] Acquiring access token... OK", checkNum, totalChecks),
		zap.String("tenant_id", creds.TenantID))
	checkNum++

	// Check 2: site
	siteID, err := client.SiteID(ctx)
	if err != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Resolving site... FAILED", checkNum, totalChecks), zap.Error(err))
		if graph.IsNotFound(err) {
			cli.Info("Hint: check graph.site_url; it must be the full SharePoint site URL, e.g. https://contoso.sharepoint.com/sites/Photos.")
		}
		return err
	}
	cli.Info(fmt.Sprintf("[%d/%d] Resolving site... OK", checkNum, totalChecks),
		zap.String("site_url", creds.SiteURL),
		zap.String("site_id", siteID))
	checkNum++

	// Check 3: library
	driveID, err := client.DriveID(ctx)
	if err != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Resolving document library... FAILED", checkNum, totalChecks), zap.Error(err))
		if graph.IsLibraryNotFound(err) {
			cli.Info("Hint: graph.library_name must match a document library on the site; the default SharePoint library is named \"Documents\".")
		}
		return err
	}
	cli.Info(fmt.Sprintf("[%d/%d] Resolving document library... OK", checkNum, totalChecks),
		zap.String("library", creds.LibraryName),
		zap.String("drive_id", driveID))
	checkNum++

	// Check 4: base folder
	items, err := client.ListChildren(ctx, cfg.Slideshow.BaseFolderPath)
	if err != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Listing base folder... FAILED", checkNum, totalChecks), zap.Error(err))
		if graph.IsNotFound(err) {
			cli.Info(fmt.Sprintf("Hint: folder %q does not exist in library %q; check slideshow.base_folder_path.",
				cfg.Slideshow.BaseFolderPath, creds.LibraryName))
		}
		return err
	}
	folders, files := 0, 0
	for _, it := range items {
		if it.IsFolder() {
			folders++
		} else {
			files++
		}
	}
	cli.Info(fmt.Sprintf("[%d/%d] Listing base folder... OK", checkNum, totalChecks),
		zap.String("path", cfg.Slideshow.BaseFolderPath),
		zap.Int("folders", folders),
		zap.Int("files", files))

	cli.Info("")
	cli.Info("All checks passed.")
	return nil
}
