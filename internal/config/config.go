package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/busgeo/route-geocoder/internal/batch"
)

const (
	defaultReferencePath  = "src/data/route-geocodes.json"
	defaultTable          = "bus_data"
	defaultIDColumn       = "id"
	defaultNamesColumn    = "routes"
	defaultRequestTimeout = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
	defaultPort           = 8080
	defaultLimit          = 200
)

// ErrInvalid marks configuration problems. They are reported before any I/O.
var ErrInvalid = errors.New("invalid configuration")

// Config holds runtime configuration shared by the applier and the API.
type Config struct {
	DatabaseURL     string
	ReferencePath   string
	ReferenceURL    string `validate:"omitempty,url"`
	Table           string `validate:"required"`
	IDColumn        string `validate:"required"`
	NamesColumn     string `validate:"required"`
	BatchSize       int    `validate:"gt=0"`
	DryRun          bool
	RequestTimeout  time.Duration `validate:"gt=0"`
	RunTimeout      time.Duration `validate:"gt=0"`
	MetricsTextfile string
	Logging         LoggingConfig
	API             APIConfig
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `validate:"omitempty,oneof=trace debug info warn error"`
	Format string `validate:"omitempty,oneof=json console"`
}

// APIConfig holds settings used only by the HTTP service.
type APIConfig struct {
	Port         int `validate:"gt=0,lte=65535"`
	BearerToken  string
	DefaultLimit int `validate:"gt=0"`
}

// ReferenceSource returns the URL when set, otherwise the file path.
func (c Config) ReferenceSource() string {
	if c.ReferenceURL != "" {
		return c.ReferenceURL
	}
	return c.ReferencePath
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.API.Port)
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		ReferencePath:   envOr("REFERENCE_PATH", defaultReferencePath),
		ReferenceURL:    env("REFERENCE_URL"),
		Table:           envOr("RECORDS_TABLE", defaultTable),
		IDColumn:        envOr("RECORDS_ID_COLUMN", defaultIDColumn),
		NamesColumn:     envOr("RECORDS_NAMES_COLUMN", defaultNamesColumn),
		DatabaseURL:     env("DATABASE_URL"),
		MetricsTextfile: env("METRICS_TEXTFILE"),
		Logging: LoggingConfig{
			Level:  strings.ToLower(envOr("LOG_LEVEL", "info")),
			Format: strings.ToLower(envOr("LOG_FORMAT", "json")),
		},
		API: APIConfig{BearerToken: env("API_BEARER_TOKEN")},
	}

	var err error
	if cfg.BatchSize, err = envInt("BATCH_SIZE", batch.DefaultSize); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.RunTimeout, err = envDuration("RUN_TIMEOUT", defaultRunTimeout); err != nil {
		return cfg, err
	}
	if cfg.API.DefaultLimit, err = envInt("API_DEFAULT_LIMIT", defaultLimit); err != nil {
		return cfg, err
	}

	cfg.API.Port = defaultPort
	if env("PORT") != "" {
		if cfg.API.Port, err = envInt("PORT", defaultPort); err != nil {
			return cfg, err
		}
	} else if cfg.API.Port, err = envInt("API_PORT", defaultPort); err != nil {
		return cfg, err
	}

	dryRun := env("DRY_RUN")
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints. Callers that touch the database should
// also call RequireDatabase.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalid, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ReferenceSource() == "" {
		return fmt.Errorf("%w: REFERENCE_PATH or REFERENCE_URL is required", ErrInvalid)
	}
	return nil
}

// RequireDatabase fails when no DATABASE_URL is configured.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", ErrInvalid)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}
