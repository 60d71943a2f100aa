package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epfab/asmtrack/internal/config"
	"github.com/epfab/asmtrack/internal/observability"
	"github.com/epfab/asmtrack/pkg/auditstore"
	"github.com/epfab/asmtrack/pkg/credithold"
	"github.com/epfab/asmtrack/pkg/manifest"
	"github.com/epfab/asmtrack/pkg/orderdb"
	"github.com/epfab/asmtrack/pkg/pipeline"
	"github.com/epfab/asmtrack/pkg/sheet"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full tracking cycle",
	Long: `Execute one full tracking cycle from a tracker manifest.

The cycle ingests job exports, sanitizes them, reconciles credit holds
against the order database, derives BOM readiness, and replaces the
tracking sheet.

Example:
  asmtrack run --manifest tracker.yaml
  asmtrack run --manifest tracker.yaml --no-sheet
  asmtrack run --manifest tracker.yaml --state-dir /var/lib/asmtrack`,
	RunE: runRun,
}

var (
	runManifestPath string
	runStateDir     string
	runNoDB         bool
	runNoSheet      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runManifestPath, "manifest", "m", "", "Path to tracker manifest (required)")
	runCmd.Flags().StringVar(&runStateDir, "state-dir", "", "Override state directory")
	runCmd.Flags().BoolVar(&runNoDB, "no-db", false, "Skip the order database hold signal")
	runCmd.Flags().BoolVar(&runNoSheet, "no-sheet", false, "Skip the tracking-sheet replace")

	_ = runCmd.MarkFlagRequired("manifest")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, cfg, err := loadManifestAndConfig(runManifestPath)
	if err != nil {
		return err
	}
	stateDir := cfg.StateDir
	if runStateDir != "" {
		stateDir = runStateDir
	}

	audit, err := auditstore.Open(ctx, auditstore.Config{Path: cfg.AuditDBPath})
	if err != nil {
		observability.CLILogger.Error("Failed to open audit store", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to open audit store", err)
	}
	defer func() { _ = audit.Close() }()

	var orderSrc credithold.OrderSource
	if cfg.OrderDB.Enabled() && !runNoDB {
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
			// The reconciler degrades to file signals; connection failure
			// is a warning, not a fatal error.
			observability.CLILogger.Warn("Order database unreachable; running on file signals only",
				zap.String("host", cfg.OrderDB.Host),
				zap.Error(err))
		} else {
			defer src.Close()
			orderSrc = src
		}
	}

	var sheetClient sheet.Client
	if cfg.Sheet.Enabled() && !runNoSheet {
		sheetClient = sheet.NewHTTPClient(sheet.HTTPConfig{
			BaseURL:           cfg.Sheet.BaseURL,
			Token:             cfg.Sheet.Token,
			RequestsPerSecond: cfg.Sheet.RequestsPerSecond,
		}, observability.CLILogger)
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Manifest:    m,
		StateDir:    stateDir,
		OrderSource: orderSrc,
		SheetClient: sheetClient,
		SheetID:     cfg.Sheet.SheetID,
		Audit:       audit,
		Log:         observability.CLILogger,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid pipeline options", err)
	}

	stats, err := runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Tracking cycle cancelled", ctx.Err())
		}
		observability.CLILogger.Error("Tracking cycle failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Tracking cycle failed", err)
	}

	fmt.Printf("Run %s complete in %s\n", stats.RunID, stats.EndedAt.Sub(stats.StartedAt).Round(time.Millisecond))
	fmt.Printf("  jobs:        %d directories, %d parsed, %d reused\n",
		stats.Cache.Directories, stats.Cache.Parsed, stats.Cache.Reused)
	fmt.Printf("  corrections: %d\n", stats.Corrections)
	fmt.Printf("  holds:       %d held, %d released, %d active\n",
		stats.HeldJobs, stats.ReleasedJobs, stats.ActiveJobs)
	fmt.Printf("  bom:         %d jobs with BOM, %d lines, %d overages applied\n",
		stats.BOM.JobsWithBOM, stats.BOM.LinesParsed, stats.BOM.OveragesApplied)
	if sheetClient != nil {
		fmt.Printf("  sheet:       %d deleted, %d inserted\n",
			stats.SheetRowsDeleted, stats.SheetRowsInserted)
	}
	if stats.DBUnavailable {
		fmt.Println("  warning:     order database unavailable; holds from file signals only")
	}
	return nil
}

// loadManifestAndConfig resolves the tracker manifest and process config for
// a command run.
func loadManifestAndConfig(manifestPath string) (*manifest.Manifest, *config.Config, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", manifestPath),
			zap.Error(err))
		return nil, nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	cfg, err := config.Load(rootConfigFile, rootEnvFile)
	if err != nil {
		return nil, nil, exitError(foundry.ExitFileReadError, "Failed to load config", err)
	}
	return m, cfg, nil
}
