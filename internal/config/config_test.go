package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/weather-s3-ingest/internal/store"
)

// clearEnv unsets every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL", "CITIES", "CITIES_FILE",
		"STORAGE_BACKEND", "S3_BUCKET_NAME", "AWS_REGION", "S3_ENDPOINT", "S3_USE_PATH_STYLE",
		"SQLITE_PATH", "HTTP_TIMEOUT", "RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_BACKOFF",
		"RETRY_MAX_BACKOFF", "BREAKER_FAILURE_THRESHOLD", "FETCH_INTERVAL", "PORT", "LOG_DEBUG",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Backend != store.BackendS3 || cfg.Storage.Region != "us-east-1" || cfg.Storage.SQLitePath != "weather.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Ingest.HTTPTimeout != 10*time.Second || cfg.Ingest.MaxAttempts != 3 || cfg.Ingest.BreakerFailureThreshold != 5 {
		t.Fatalf("unexpected ingest defaults %+v", cfg.Ingest)
	}
	if cfg.Service.FetchInterval != 15*time.Minute || cfg.Service.Port != "8080" {
		t.Fatalf("unexpected service defaults %+v", cfg.Service)
	}

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.InitialBackoff != time.Second || p.MaxBackoff != 30*time.Second || p.Multiplier != 2 {
		t.Fatalf("unexpected retry policy %+v", p)
	}
}

func TestValidateIngestNamesMissingSettings(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err = cfg.ValidateIngest()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, name := range []string{"OPENWEATHER_API_KEY", "CITIES"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}

	if err := cfg.ValidateStorage(); err == nil || !strings.Contains(err.Error(), "S3_BUCKET_NAME") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
}

func TestLoadCitiesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "k")
	t.Setenv("CITIES", " London, New York ,,Paris ")
	t.Setenv("STORAGE_BACKEND", "SQLite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"London", "New York", "Paris"}
	if !reflect.DeepEqual(cfg.Ingest.Cities, want) {
		t.Fatalf("got cities %v, want %v", cfg.Ingest.Cities, want)
	}
	if err := cfg.ValidateIngest(); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		t.Fatalf("sqlite backend must not need a bucket: %v", err)
	}
	if cfg.StoreOptions().Backend != store.BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.StoreOptions().Backend)
	}
}

func TestLoadCitiesFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cities.yaml")
	doc := "cities:\n  - name: London\n  - name: \"São Paulo\"\n  - name: \"\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write cities file: %v", err)
	}
	t.Setenv("CITIES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"London", "São Paulo"}
	if !reflect.DeepEqual(cfg.Ingest.Cities, want) {
		t.Fatalf("got cities %v, want %v", cfg.Ingest.Cities, want)
	}

	t.Setenv("CITIES", "Oslo")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Ingest.Cities, []string{"Oslo"}) {
		t.Fatalf("CITIES must take precedence, got %v", cfg.Ingest.Cities)
	}
}

func TestLoadDropsDuplicateCities(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITIES", "New York,new york,London, NEW YORK ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"New York", "London"}
	if !reflect.DeepEqual(cfg.Ingest.Cities, want) {
		t.Fatalf("got cities %v, want %v", cfg.Ingest.Cities, want)
	}
}

func TestLoadRejectsOversizedBreakerThreshold(t *testing.T) {
	for _, value := range []string{"-1", "4294967296", "9223372036854775807"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BREAKER_FAILURE_THRESHOLD", value)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BREAKER_FAILURE_THRESHOLD") {
				t.Fatalf("expected threshold %s to be rejected, got %v", value, err)
			}
		})
	}

	clearEnv(t)
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "4294967295")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BreakerConfig().FailureThreshold != 4294967295 {
		t.Fatalf("threshold truncated to %d", cfg.BreakerConfig().FailureThreshold)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"FETCH_INTERVAL":            "soon",
		"RETRY_MAX_ATTEMPTS":        "three",
		"S3_USE_PATH_STYLE":         "maybe",
		"BREAKER_FAILURE_THRESHOLD": "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestValidateStorageRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "ftp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.ValidateStorage(); err == nil || !strings.Contains(err.Error(), "STORAGE_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestValidateBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.ValidateBucket(); err == nil {
		t.Fatal("bucket management needs a bucket name")
	}

	cfg.Storage.Bucket = "weather-data"
	if err := cfg.ValidateBucket(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
