package main

import (
	"fmt"
	"os"

	"github.com/epfab/asmtrack/internal/cmd"
)

// Build metadata, injected via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmd.ExitCodeFor(err))
	}
}
