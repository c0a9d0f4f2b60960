package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FOXESS_API_KEY", "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	t.Setenv("FOXESS_DEVICE_SN", "ABC1234567890")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "https://www.foxesscloud.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d", cfg.CacheSize)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
	if !cfg.CacheEncrypt {
		t.Error("CacheEncrypt should default to true")
	}
	if cfg.CacheDir == "" {
		t.Error("CacheDir should default to a temp subdirectory")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FOXESS_BASE_URL", "http://localhost:8080")
	t.Setenv("FOXESS_CACHE_DIR", "/var/cache/foxess")
	t.Setenv("FOXESS_CACHE_SIZE", "50")
	t.Setenv("FOXESS_CACHE_TTL", "60s")
	t.Setenv("FOXESS_CACHE_ENCRYPT", "false")
	t.Setenv("FOXESS_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.CacheDir != "/var/cache/foxess" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.CacheSize != 50 {
		t.Errorf("CacheSize = %d", cfg.CacheSize)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
	if cfg.CacheEncrypt {
		t.Error("CacheEncrypt = true, want false")
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("FOXESS_API_KEY", "")
	t.Setenv("FOXESS_DEVICE_SN", "")

	if _, err := Load(); err == nil {
		t.Error("Load() without credentials should fail")
	}
}
