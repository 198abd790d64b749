package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/busgeo/route-geocoder/internal/batch"
	"github.com/busgeo/route-geocoder/internal/config"
	"github.com/busgeo/route-geocoder/internal/pipeline"
)

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfig      = 2
	ExitSourceRead  = 3
	ExitPersistence = 4
)

// options holds the global flags.
type options struct {
	logLevel  string
	logFormat string
	reference string
	batchSize int
	dryRun    bool
}

// NewRootCmd builds the applier command tree. Running it without a
// subcommand performs an apply.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "applier",
		Short: "Attach reference coordinates to stored route stop lists",
		Long: `applier reads a reference list of named stops with coordinates, pairs each
stop name in the records table with its coordinate (null when unknown) and
writes the enriched lists back in batches.

Configuration comes from the environment (optionally a .env file); flags
override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")
	root.PersistentFlags().StringVar(&opts.reference, "reference", "", "reference file path or http(s) URL (default: REFERENCE_PATH)")
	root.PersistentFlags().IntVar(&opts.batchSize, "batch-size", 0, "records per upsert batch (default: BATCH_SIZE or 100)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "enrich and report without writing")

	root.AddCommand(newApplyCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error category to a process exit code.
func ExitCode(err error) int {
	var perr *batch.PersistError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalid), errors.Is(err, batch.ErrInvalidBatchSize):
		return ExitConfig
	case errors.Is(err, pipeline.ErrSourceRead):
		return ExitSourceRead
	case errors.As(err, &perr):
		return ExitPersistence
	default:
		return ExitError
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flags.Changed("reference") {
		cfg.ReferencePath = opts.reference
		cfg.ReferenceURL = ""
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = opts.batchSize
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}

	logger := config.NewLogger(cfg.Logging)
	return cfg, logger, cfg.Validate()
}
