// Package cmd implements the asmtrack CLI.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/epfab/asmtrack/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "asmtrack",
	Short: "Assembly work-order tracking pipeline",
	Long: `asmtrack reconciles the assembly floor's job exports, the order
database, and the hosted tracking sheet into one consistent view.

Each cycle ingests the per-job export files, corrects unreliable values,
merges the two credit-hold signals, derives BOM readiness per work order,
and replaces the tracking sheet while preserving what humans typed into it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return observability.Init(rootVerbose)
	},
}

var (
	rootVerbose    bool
	rootConfigFile string
	rootEnvFile    string
)

// versionInfo carries build metadata injected at link time.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records the build metadata shown by --version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigFile, "config", "", "Path to environment config file")
	rootCmd.PersistentFlags().StringVar(&rootEnvFile, "env-file", "", "Path to .env file for local development")
}

// Execute runs the CLI.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}
