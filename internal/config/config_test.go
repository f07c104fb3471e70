package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Scheduler.RunHour != 7 || cfg.Scheduler.RunMinute != 0 {
		t.Fatalf("schedule = %d:%d, want 7:00", cfg.Scheduler.RunHour, cfg.Scheduler.RunMinute)
	}
	if cfg.Scheduler.IdleSleep() != 300*time.Second {
		t.Fatalf("idle sleep = %v, want 300s", cfg.Scheduler.IdleSleep())
	}
	if cfg.Scheduler.Window() != 24*time.Hour {
		t.Fatalf("window = %v, want 24h", cfg.Scheduler.Window())
	}
	if cfg.Pipeline.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want 3", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.PopTimeout() != 5*time.Second {
		t.Fatalf("pop timeout = %v, want 5s", cfg.Pipeline.PopTimeout())
	}
	if cfg.Assistant.Timeout() != 120*time.Second {
		t.Fatalf("assistant timeout = %v, want 120s", cfg.Assistant.Timeout())
	}
	if cfg.Assistant.PollInterval() != 2*time.Second {
		t.Fatalf("assistant poll = %v, want 2s", cfg.Assistant.PollInterval())
	}
	if cfg.Metrics.Port != 8000 {
		t.Fatalf("metrics port = %d, want 8000", cfg.Metrics.Port)
	}
	if cfg.DocStore.RootFolder != "Clients" {
		t.Fatalf("root folder = %q, want Clients", cfg.DocStore.RootFolder)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
scheduler:
  runHour: 9
  runMinute: 30
pipeline:
  maxRetries: 5
discovery:
  baseUrl: https://discovery.internal
smtp:
  host: smtp.internal
  from: bot@internal
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Scheduler.RunHour != 9 || cfg.Scheduler.RunMinute != 30 {
		t.Fatalf("schedule = %d:%d, want 9:30", cfg.Scheduler.RunHour, cfg.Scheduler.RunMinute)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("max retries = %d, want 5", cfg.Pipeline.MaxRetries)
	}
	if cfg.Discovery.BaseURL != "https://discovery.internal" {
		t.Fatalf("discovery url = %q", cfg.Discovery.BaseURL)
	}
	if cfg.SMTP.Host != "smtp.internal" || cfg.SMTP.From != "bot@internal" {
		t.Fatalf("smtp = %+v", cfg.SMTP)
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("retry attempts = %d, want default 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv(discoveryAPIKeyEnv, "secret-key")
	t.Setenv(warehouseDSNEnv, "postgres://warehouse.internal/calls")
	t.Setenv(runHourEnv, "5")
	t.Setenv(maxRetriesEnv, "7")

	cfg := Load()
	if cfg.Discovery.APIKey != "secret-key" {
		t.Fatalf("api key = %q", cfg.Discovery.APIKey)
	}
	if cfg.Warehouse.DSN != "postgres://warehouse.internal/calls" {
		t.Fatalf("dsn = %q", cfg.Warehouse.DSN)
	}
	if cfg.Scheduler.RunHour != 5 {
		t.Fatalf("run hour = %d, want 5", cfg.Scheduler.RunHour)
	}
	if cfg.Pipeline.MaxRetries != 7 {
		t.Fatalf("max retries = %d, want 7", cfg.Pipeline.MaxRetries)
	}
}

func TestLoadIgnoresInvalidIntEnv(t *testing.T) {
	t.Setenv(runHourEnv, "not-a-number")

	cfg := Load()
	if cfg.Scheduler.RunHour != 7 {
		t.Fatalf("run hour = %d, want default 7", cfg.Scheduler.RunHour)
	}
}
