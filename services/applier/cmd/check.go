package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/busgeo/route-geocoder/internal/geo"
	"github.com/busgeo/route-geocoder/internal/pipeline"
	"github.com/busgeo/route-geocoder/internal/refdata"
)

func newCheckCmd(opts *options) *cobra.Command {
	var lookups []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the reference data without touching the database",
		Long: `check loads the reference stops, builds the lookup index and reports how
many entries were usable, dropped or duplicated. Use --lookup to resolve
individual names against the index.

Examples:
  applier check --reference src/data/route-geocodes.json
  applier check --lookup "Centro" --lookup "Estadio"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()

			src := refdata.New(cfg.ReferenceSource(), &http.Client{Timeout: cfg.RequestTimeout})
			entries, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("%w: reference data: %w", pipeline.ErrSourceRead, err)
			}
			idx := geo.Build(entries)
			logger.Debug().Str("source", cfg.ReferenceSource()).Int("entries", len(entries)).Msg("reference data loaded")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:     %s\n", cfg.ReferenceSource())
			fmt.Fprintf(out, "entries:    %d\n", len(entries))
			fmt.Fprintf(out, "usable:     %d\n", idx.Len())
			fmt.Fprintf(out, "dropped:    %d\n", idx.Dropped())
			fmt.Fprintf(out, "duplicates: %d\n", idx.Duplicates())

			for _, name := range lookups {
				c, ok := idx.Lookup(name)
				switch {
				case !ok:
					fmt.Fprintf(out, "lookup %q: not found\n", name)
				case c.Lat == nil || c.Lon == nil:
					fmt.Fprintf(out, "lookup %q: no coordinates\n", name)
				default:
					fmt.Fprintf(out, "lookup %q: %g,%g\n", name, *c.Lat, *c.Lon)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&lookups, "lookup", nil, "stop name to resolve (repeatable)")
	return cmd
}
