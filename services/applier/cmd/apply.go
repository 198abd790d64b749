package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/busgeo/route-geocoder/internal/db"
	"github.com/busgeo/route-geocoder/internal/metrics"
	"github.com/busgeo/route-geocoder/internal/pipeline"
	"github.com/busgeo/route-geocoder/internal/refdata"
)

func newApplyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Enrich stored records and write them back",
		Long: `apply loads the reference stops, enriches every record whose names column
holds a list, and upserts the results keyed by id in batches of BATCH_SIZE.

The first failed batch stops the run; batches already written stay written.

Examples:
  # Use REFERENCE_PATH and DATABASE_URL from the environment or .env
  applier apply

  # Preview what would be written
  applier apply --dry-run --log-format console

  # Read reference stops from a URL with smaller batches
  applier apply --reference https://example.com/route-geocodes.json --batch-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}
}

func runApply(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL, db.Table{
		Name:        cfg.Table,
		IDColumn:    cfg.IDColumn,
		NamesColumn: cfg.NamesColumn,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	client := &http.Client{Timeout: cfg.RequestTimeout}
	runner := &pipeline.Runner{
		Reference: refdata.New(cfg.ReferenceSource(), client),
		Records:   store,
		Writer:    store,
		BatchSize: cfg.BatchSize,
		DryRun:    cfg.DryRun,
		Logger:    logger,
	}

	_, runErr := runner.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("failed to write metrics textfile")
		}
	}
	if runErr != nil {
		return runErr
	}

	logger.Info().Msg("Done writing geocoded routes")
	return nil
}
