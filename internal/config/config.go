package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-s3-ingest/internal/retry"
	"github.com/i474232898/weather-s3-ingest/internal/store"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
	"github.com/i474232898/weather-s3-ingest/internal/weather/providers"
)

// IngestConfig holds what a pipeline run needs.
type IngestConfig struct {
	APIKey  string   `env:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL string   `env:"OPENWEATHER_BASE_URL" validate:"required,url"`
	Cities  []string `env:"CITIES" validate:"min=1,dive,required"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`

	MaxAttempts    int           `env:"RETRY_MAX_ATTEMPTS" validate:"min=1"`
	InitialBackoff time.Duration `env:"RETRY_INITIAL_BACKOFF" validate:"gte=0"`
	MaxBackoff     time.Duration `env:"RETRY_MAX_BACKOFF" validate:"gte=0"`

	// BreakerFailureThreshold of 0 disables the circuit breaker.
	BreakerFailureThreshold uint32 `env:"BREAKER_FAILURE_THRESHOLD"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend      string `env:"STORAGE_BACKEND" validate:"oneof=s3 sqlite memory"`
	Bucket       string `env:"S3_BUCKET_NAME" validate:"required_if=Backend s3"`
	Region       string `env:"AWS_REGION" validate:"required"`
	Endpoint     string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	UsePathStyle bool   `env:"S3_USE_PATH_STYLE"`
	SQLitePath   string `env:"SQLITE_PATH" validate:"required_if=Backend sqlite"`
}

// ServiceConfig holds settings of the long-running scheduler service.
type ServiceConfig struct {
	// FetchInterval controls how often a pipeline run starts.
	FetchInterval time.Duration `env:"FETCH_INTERVAL" validate:"gt=0"`
	Port          string        `env:"PORT" validate:"required,numeric"`
}

type AppConfig struct {
	Ingest  IngestConfig
	Storage StorageConfig
	Service ServiceConfig

	LogDebug bool
}

var validate = newValidator()

// newValidator reports fields by their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Load reads configuration from the environment (and an optional .env file)
// with defaults. It only fails on values that cannot be parsed; call the
// Validate* methods for the settings a command actually needs.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &AppConfig{}
	var err error

	cfg.Ingest.APIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.Ingest.BaseURL = getenvDefault("OPENWEATHER_BASE_URL", providers.DefaultOpenWeatherURL)

	if cfg.Ingest.Cities, err = loadCities(); err != nil {
		return nil, err
	}
	if cfg.Ingest.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Ingest.MaxAttempts, err = getenvInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Ingest.InitialBackoff, err = getenvDuration("RETRY_INITIAL_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.Ingest.MaxBackoff, err = getenvDuration("RETRY_MAX_BACKOFF", 30*time.Second); err != nil {
		return nil, err
	}
	threshold, err := getenvInt("BREAKER_FAILURE_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > math.MaxUint32 {
		return nil, fmt.Errorf("invalid BREAKER_FAILURE_THRESHOLD: must be between 0 and %d", uint32(math.MaxUint32))
	}
	cfg.Ingest.BreakerFailureThreshold = uint32(threshold)

	cfg.Storage.Backend = strings.ToLower(getenvDefault("STORAGE_BACKEND", store.BackendS3))
	cfg.Storage.Bucket = os.Getenv("S3_BUCKET_NAME")
	cfg.Storage.Region = getenvDefault("AWS_REGION", "us-east-1")
	cfg.Storage.Endpoint = os.Getenv("S3_ENDPOINT")
	if cfg.Storage.UsePathStyle, err = getenvBool("S3_USE_PATH_STYLE", false); err != nil {
		return nil, err
	}
	cfg.Storage.SQLitePath = getenvDefault("SQLITE_PATH", "weather.db")

	if cfg.Service.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.Service.Port = getenvDefault("PORT", "8080")

	if cfg.LogDebug, err = getenvBool("LOG_DEBUG", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateIngest checks the settings needed to run the pipeline.
func (c *AppConfig) ValidateIngest() error {
	return describe(validate.Struct(c.Ingest))
}

// ValidateStorage checks the settings needed to open the object store.
func (c *AppConfig) ValidateStorage() error {
	return describe(validate.Struct(c.Storage))
}

// ValidateService checks the scheduler service settings.
func (c *AppConfig) ValidateService() error {
	return describe(validate.Struct(c.Service))
}

// ValidateBucket checks the settings needed for bucket management, which
// always talks to S3 regardless of STORAGE_BACKEND.
func (c *AppConfig) ValidateBucket() error {
	var missing []string
	if err := validate.Var(c.Storage.Bucket, "required"); err != nil {
		missing = append(missing, "S3_BUCKET_NAME (required)")
	}
	if err := validate.Var(c.Storage.Region, "required"); err != nil {
		missing = append(missing, "AWS_REGION (required)")
	}
	if err := validate.Var(c.Storage.Endpoint, "omitempty,url"); err != nil {
		missing = append(missing, "S3_ENDPOINT (url)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing or invalid settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RetryPolicy builds the fetch retry policy.
func (c *AppConfig) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Ingest.MaxAttempts
	p.InitialBackoff = c.Ingest.InitialBackoff
	p.MaxBackoff = c.Ingest.MaxBackoff
	return p
}

// BreakerConfig builds the upstream circuit breaker settings.
func (c *AppConfig) BreakerConfig() providers.BreakerConfig {
	return providers.BreakerConfig{FailureThreshold: c.Ingest.BreakerFailureThreshold}
}

// StoreOptions builds the object store options.
func (c *AppConfig) StoreOptions() store.Options {
	return store.Options{
		Backend: c.Storage.Backend,
		S3: store.S3Options{
			Bucket:       c.Storage.Bucket,
			Region:       c.Storage.Region,
			Endpoint:     c.Storage.Endpoint,
			UsePathStyle: c.Storage.UsePathStyle,
		},
		SQLitePath: c.Storage.SQLitePath,
	}
}

// describe turns validator errors into one line naming the offending
// environment variables.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("missing or invalid settings: %s", strings.Join(parts, ", "))
}

// citiesFile is the CITIES_FILE document:
//
//	cities:
//	  - name: London
//	  - name: New York
type citiesFile struct {
	Cities []struct {
		Name string `yaml:"name"`
	} `yaml:"cities"`
}

// loadCities reads CITIES (comma separated), falling back to CITIES_FILE.
func loadCities() ([]string, error) {
	if v := os.Getenv("CITIES"); strings.TrimSpace(v) != "" {
		return splitCities(strings.Split(v, ",")), nil
	}

	path := os.Getenv("CITIES_FILE")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CITIES_FILE: %w", err)
	}

	var doc citiesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing CITIES_FILE %s: %w", path, err)
	}
	names := make([]string, 0, len(doc.Cities))
	for _, c := range doc.Cities {
		names = append(names, c.Name)
	}
	return splitCities(names), nil
}

// splitCities trims names, drops blanks and drops names that share a storage
// key fragment with an earlier one ("New York" and "new york").
func splitCities(raw []string) []string {
	cities, _ := weather.UniqueCities(raw)
	return cities
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
