// Package cli implements the leaselens command line tool: local one-shot
// lease analysis, statute corpus preparation, and database migrations.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Output     string
}

// NewRootCommand builds the leaselens command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "leaselens",
		Short:   "LeaseLens — lease agreement legal analysis",
		Long:    "LeaseLens analyzes residential lease agreements against Massachusetts\nhousing law: PII redaction, chunked RAG analysis, and a consolidated\nreport of illegal clauses, risky terms, and tenant-favorable provisions.",
		Version: fmt.Sprintf("%s (commit %s)", Version, GitCommit),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: env-only configuration)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")

	cmd.AddCommand(
		newAnalyzeCommand(opts),
		newCorpusCommand(opts),
		newMigrateCommand(opts),
	)

	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration for a subcommand: the --config file when
// given, otherwise LEASELENS_* environment variables over defaults.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadFromEnv()
}

// newCLILogger builds a console logger on stderr so command output stays
// clean on stdout.
func newCLILogger(opts *RootOptions) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}
