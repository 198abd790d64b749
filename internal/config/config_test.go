package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REFERENCE_PATH", "REFERENCE_URL", "RECORDS_TABLE",
		"RECORDS_ID_COLUMN", "RECORDS_NAMES_COLUMN", "BATCH_SIZE", "DRY_RUN",
		"REQUEST_TIMEOUT", "RUN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"METRICS_TEXTFILE", "PORT", "API_PORT", "API_BEARER_TOKEN", "API_DEFAULT_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "src/data/route-geocodes.json", cfg.ReferenceSource())
	assert.Equal(t, "bus_data", cfg.Table)
	assert.Equal(t, "id", cfg.IDColumn)
	assert.Equal(t, "routes", cfg.NamesColumn)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, 200, cfg.API.DefaultLimit)
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.RequireDatabase(), ErrInvalid)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", " postgres://localhost/transit ")
	t.Setenv("REFERENCE_URL", "https://example.com/stops.json")
	t.Setenv("RECORDS_TABLE", "routes_v2")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("DRY_RUN", "TRUE")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/transit", cfg.DatabaseURL)
	assert.Equal(t, "https://example.com/stops.json", cfg.ReferenceSource())
	assert.Equal(t, "routes_v2", cfg.Table)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoad_PortTakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("API_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.API.Port)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"BATCH_SIZE", "many"},
		{"REQUEST_TIMEOUT", "soon"},
		{"RUN_TIMEOUT", "10"},
		{"API_DEFAULT_LIMIT", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ReferencePath:  "stops.json",
			Table:          "bus_data",
			IDColumn:       "id",
			NamesColumn:    "routes",
			BatchSize:      100,
			RequestTimeout: time.Second,
			RunTimeout:     time.Minute,
			API:            APIConfig{Port: 8080, DefaultLimit: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.BatchSize = -5 }},
		{"missing table", func(c *Config) { c.Table = "" }},
		{"bad url", func(c *Config) { c.ReferenceURL = "not a url" }},
		{"no reference", func(c *Config) { c.ReferencePath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad port", func(c *Config) { c.API.Port = 70000 }},
	}

	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("stop", "Centro").Msg("shown")

	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"stop":"Centro"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "chatty"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
