package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epfab/asmtrack/internal/observability"
	"github.com/epfab/asmtrack/pkg/exportcache"
	"github.com/epfab/asmtrack/pkg/pipeline"
	"github.com/epfab/asmtrack/pkg/sanitize"
	"github.com/epfab/asmtrack/pkg/statefile"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest and sanitize job exports without syncing",
	Long: `Ingest the per-job export files into the local cache and apply the
sanitizer, without touching the order database or the tracking sheet.

Useful for priming the cache on a new deployment and for inspecting what
a full run would ingest.

Example:
  asmtrack ingest --manifest tracker.yaml`,
	RunE: runIngest,
}

var (
	ingestManifestPath string
	ingestStateDir     string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestManifestPath, "manifest", "m", "", "Path to tracker manifest (required)")
	ingestCmd.Flags().StringVar(&ingestStateDir, "state-dir", "", "Override state directory")

	_ = ingestCmd.MarkFlagRequired("manifest")
}

func runIngest(cmd *cobra.Command, args []string) error {
	m, cfg, err := loadManifestAndConfig(ingestManifestPath)
	if err != nil {
		return err
	}
	stateDir := cfg.StateDir
	if ingestStateDir != "" {
		stateDir = ingestStateDir
	}
	cachePath := filepath.Join(stateDir, pipeline.FileJobCache)

	prior, err := exportcache.Load(cachePath)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to load job cache", err)
	}
	builder := &exportcache.Builder{ExportName: m.Sources.ExportFile, Log: observability.CLILogger}
	cache, stats, err := builder.Build(m.Sources.JobsRoot, prior)
	if err != nil {
		observability.CLILogger.Error("Ingestion failed",
			zap.String("jobs_root", m.Sources.JobsRoot),
			zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Failed to ingest job exports", err)
	}

	sanitizer := sanitize.New(sanitize.Config{
		NumericFields:  m.Policy.NumericFields,
		NumericDefault: m.Policy.NumericDefault,
		DateFields:     m.Policy.DateFields,
		DateDefault:    m.Policy.DateDefault,
		DateLayouts:    m.Policy.DateLayouts,
	})
	corrections := sanitizer.Apply(cache.Entries)

	if err := statefile.Save(filepath.Join(stateDir, pipeline.FileCorrections), corrections); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to save corrections", err)
	}
	if err := exportcache.Save(cachePath, cache); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to save job cache", err)
	}

	fmt.Printf("Ingested %d directories: %d parsed, %d reused, %d skipped, %d without export\n",
		stats.Directories, stats.Parsed, stats.Reused, stats.Skipped, stats.NoExport)
	fmt.Printf("Corrections: %d\n", len(corrections))
	for _, c := range corrections {
		fmt.Printf("  %-12s %-12s %q -> %q (%s)\n", c.WorkOrder, c.Field, c.Original, c.Corrected, c.Kind)
	}
	return nil
}
