// Command trialscope runs the trial enrichment pipelines from the command line.
package main

import (
	"os"

	"github.com/turtacn/trialscope/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(cli.Factories{
		Runtime:  buildRuntime,
		Migrator: buildMigrator,
	}); err != nil {
		os.Exit(1)
	}
}
