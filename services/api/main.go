package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/busgeo/route-geocoder/internal/config"
	"github.com/busgeo/route-geocoder/internal/db"
	"github.com/busgeo/route-geocoder/internal/geo"
	"github.com/busgeo/route-geocoder/internal/metrics"
	"github.com/busgeo/route-geocoder/internal/refdata"
	httpserver "github.com/busgeo/route-geocoder/services/api/http"
)

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg.Logging)
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = cfg.RequireDatabase()
	}
	if err != nil {
		logger.Error().Err(err).Msg("config error")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	entries, err := refdata.New(cfg.ReferenceSource(), &http.Client{Timeout: cfg.RequestTimeout}).Load(loadCtx)
	loadCancel()
	if err != nil {
		logger.Error().Err(err).Str("source", cfg.ReferenceSource()).Msg("reference data error")
		os.Exit(3)
	}
	index := geo.Build(entries)
	metrics.ReferenceEntries.Set(float64(index.Len()))
	logger.Info().Int("entries", index.Len()).Msgf("Loaded %d geocoded stops", index.Len())

	store, err := db.New(ctx, cfg.DatabaseURL, db.Table{
		Name:        cfg.Table,
		IDColumn:    cfg.IDColumn,
		NamesColumn: cfg.NamesColumn,
	})
	if err != nil {
		logger.Error().Err(err).Msg("db connection error")
		os.Exit(1)
	}
	defer store.Close()

	srv := httpserver.New(cfg, store, index, logger)
	logger.Info().Str("addr", cfg.ListenAddr()).Msg("REST API listening")

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server error")
		store.Close()
		os.Exit(1)
	}
}
