package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// Report modes, also used as history keys.
const (
	modeRun      = "run"
	modeHeredoc  = "heredoc"
	modeCoverage = "coverage"
	modeStatus   = "status"
)

// NewRootCommand creates and returns the root cobra command for bookcheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookcheck",
		Short: "Validate the code examples of a programming-language book",
		Long: `bookcheck extracts the code examples from a book's chapters and test
scripts, runs every example through the language toolchain, and decides
whether the book is fit to publish.

Each example may declare its expected behavior with a status marker
(working, not implemented, broken, planned). Outcomes are classified against
that declaration, aggregated into a report, and compared with the configured
quality gates. The exit code is 0 when every gate passes and 1 otherwise.

Configuration is loaded from .bookcheck/config.yaml at the book root if
present, then from BOOKCHECK_* environment variables. Flags override both.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: <book root>/.bookcheck/config.yaml)")
	flags.String("log-level", "", "Console log level: trace, debug, info, warn, error")
	flags.Int("max-concurrency", 0, "Maximum concurrent tool processes (0 = number of CPUs)")
	flags.Duration("timeout", 0, "Per-tool timeout for the built-in catalog (e.g. 30s, 2m)")
	flags.StringSlice("tool", nil, "Only run the named tool (repeatable)")
	flags.StringSlice("phase", nil, "Only run the tools of the named phase (repeatable)")
	flags.String("metrics-file", "", "Write a Prometheus textfile with the run's metrics")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("no-history", false, "Do not read or record run history")
	flags.BoolP("verbose", "v", false, "Show captured tool output for failures")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewHeredocCommand())
	cmd.AddCommand(NewCoverageCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewToolsCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
