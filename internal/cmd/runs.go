package cmd

import (
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/epfab/asmtrack/internal/config"
	"github.com/epfab/asmtrack/pkg/auditstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent tracking cycles from the audit store",
	Long: `List recent tracking cycles recorded in the audit store, newest
first.

Example:
  asmtrack runs
  asmtrack runs --limit 50`,
	RunE: runRuns,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(rootConfigFile, rootEnvFile)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to load config", err)
	}

	audit, err := auditstore.Open(ctx, auditstore.Config{Path: cfg.AuditDBPath})
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to open audit store", err)
	}
	defer func() { _ = audit.Close() }()

	runs, err := audit.RecentRuns(ctx, runsLimit)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list runs", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-38s %-22s %-10s %s\n", "RUN", "STARTED", "STATUS", "DURATION")
	for _, r := range runs {
		duration := "-"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%-38s %-22s %-10s %s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			duration)
	}
	return nil
}
