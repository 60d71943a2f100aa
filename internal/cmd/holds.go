package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epfab/asmtrack/internal/observability"
	"github.com/epfab/asmtrack/pkg/credithold"
	"github.com/epfab/asmtrack/pkg/exportcache"
	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/orderdb"
	"github.com/epfab/asmtrack/pkg/pipeline"
	"github.com/epfab/asmtrack/pkg/statefile"
)

var holdsCmd = &cobra.Command{
	Use:   "holds",
	Short: "Report the current credit-hold classification",
	Long: `Reconcile the credit-hold signals for the cached job exports and
print the held, released, and discrepant work orders without persisting
any state or touching the tracking sheet.

Run 'asmtrack ingest' first to refresh the cache.

Example:
  asmtrack holds --manifest tracker.yaml
  asmtrack holds --manifest tracker.yaml --no-db`,
	RunE: runHolds,
}

var (
	holdsManifestPath string
	holdsStateDir     string
	holdsNoDB         bool
)

func init() {
	rootCmd.AddCommand(holdsCmd)

	holdsCmd.Flags().StringVarP(&holdsManifestPath, "manifest", "m", "", "Path to tracker manifest (required)")
	holdsCmd.Flags().StringVar(&holdsStateDir, "state-dir", "", "Override state directory")
	holdsCmd.Flags().BoolVar(&holdsNoDB, "no-db", false, "Skip the order database hold signal")

	_ = holdsCmd.MarkFlagRequired("manifest")
}

func runHolds(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, cfg, err := loadManifestAndConfig(holdsManifestPath)
	if err != nil {
		return err
	}
	stateDir := cfg.StateDir
	if holdsStateDir != "" {
		stateDir = holdsStateDir
	}

	cache, err := exportcache.Load(filepath.Join(stateDir, pipeline.FileJobCache))
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to load job cache", err)
	}
	if len(cache.Entries) == 0 {
		return exitError(foundry.ExitFileNotFound, "Job cache is empty",
			fmt.Errorf("run 'asmtrack ingest' first"))
	}

	var priorHeld []model.CreditHoldRecord
	if _, err := statefile.Load(filepath.Join(stateDir, pipeline.FileCreditHold), &priorHeld); err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to load credit holds", err)
	}

	var orderSrc credithold.OrderSource
	if cfg.OrderDB.Enabled() && !holdsNoDB {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.OrderDB.ConnectTimeout)
		src, err := orderdb.Connect(connectCtx, orderdb.Config{
			Host:     cfg.OrderDB.Host,
			Port:     cfg.OrderDB.Port,
			User:     cfg.OrderDB.User,
			Password: cfg.OrderDB.Password,
			Database: cfg.OrderDB.Name,
		})
		cancel()
		if err != nil {
			observability.CLILogger.Warn("Order database unreachable; file signals only", zap.Error(err))
		} else {
			defer src.Close()
			orderSrc = src
		}
	}

	jobs := make([]model.JobRecord, 0, len(cache.Entries))
	for _, e := range cache.Entries {
		jobs = append(jobs, e.JobRecord())
	}

	reconciler := credithold.New(credithold.Config{
		ExcludedStatuses: m.Policy.ExcludedStatuses,
		OrderNoWidth:     m.Policy.OrderNoWidth,
	}, orderSrc, observability.CLILogger)
	res := reconciler.Reconcile(ctx, jobs, priorHeld)

	fmt.Printf("Active: %d  Held: %d  Released: %d\n", len(res.Active), len(res.Held), len(res.Released))
	if res.DBUnavailable {
		fmt.Println("Warning: order database unavailable; holds from file signals only")
	}

	if len(res.Held) > 0 {
		fmt.Println("\nHeld:")
		for _, h := range res.Held {
			fmt.Printf("  %-12s since %-20s source=%s\n", h.WorkOrder, h.TrackingDate, h.Source)
		}
	}
	if len(res.Released) > 0 {
		fmt.Println("\nReleased this cycle:")
		for _, r := range res.Released {
			fmt.Printf("  %-12s held since %-20s released %s\n", r.WorkOrder, r.TrackingDate, r.ReleaseDate)
		}
	}
	if len(res.Discrepancy.DatabaseOnly) > 0 || len(res.Discrepancy.FileOnly) > 0 {
		fmt.Println("\nSignal discrepancies:")
		for _, wo := range res.Discrepancy.DatabaseOnly {
			fmt.Printf("  %-12s held in database only (order %s)\n", wo, res.Discrepancy.OrderNumbers[wo])
		}
		for _, wo := range res.Discrepancy.FileOnly {
			fmt.Printf("  %-12s held in export only (order %s)\n", wo, res.Discrepancy.OrderNumbers[wo])
		}
	}
	return nil
}
