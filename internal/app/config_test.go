package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/progressfacts/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(configFileEnv, "")
	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "memory" || cfg.MirrorDriver != "none" || cfg.Port != "8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	tc := cfg.Throttle.Throttle()
	if tc.MinSpacing != 800*time.Millisecond || tc.DedupeWindow != 1500*time.Millisecond ||
		tc.SuppressFor != 5*time.Minute || tc.QueueSize != 256 {
		t.Fatalf("unexpected throttle defaults: %+v", tc)
	}
	if cfg.TxnMaxAttempts != 5 {
		t.Fatalf("txn attempts = %d", cfg.TxnMaxAttempts)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	raw := []byte(`
storeDriver: sqlite
sqlitePath: /tmp/progress.db
mirrorDriver: store
allowedOrigins: ["https://app.example"]
throttle:
  minSpacingMs: 100
  queueSize: 32
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(configFileEnv, path)
	t.Setenv("THROTTLE_QUEUE_SIZE", "64")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" || cfg.SQLitePath != "/tmp/progress.db" || cfg.MirrorDriver != "store" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Throttle.MinSpacingMS != 100 {
		t.Fatalf("min spacing = %d", cfg.Throttle.MinSpacingMS)
	}
	if cfg.Throttle.QueueSize != 64 {
		t.Fatalf("env must win over file, queue = %d", cfg.Throttle.QueueSize)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Throttle.SuppressMS != 300000 {
		t.Fatalf("unset file keys keep defaults, suppress = %d", cfg.Throttle.SuppressMS)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":    {"STORE_DRIVER": "mongo"},
		"sqlite path":      {"STORE_DRIVER": "sqlite"},
		"redis addr":       {"MIRROR_DRIVER": "redis"},
		"unknown mirror":   {"MIRROR_DRIVER": "kafka"},
		"txn attempts":     {"TXN_MAX_ATTEMPTS": "0"},
		"sampler ratio":    {"OTEL_SAMPLER_RATIO": "1.5"},
		"non numeric port": {"PORT": "http"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(configFileEnv, "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(logger.Nop()); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(logger.Nop()); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
