// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the access layer needs. Credential fields are
// format-validated later by foxess.NewCredential; Load only enforces
// presence and types.
type Config struct {
	APIKey   string        `env:"FOXESS_API_KEY,required,notEmpty"`
	DeviceSN string        `env:"FOXESS_DEVICE_SN,required,notEmpty"`
	BaseURL  string        `env:"FOXESS_BASE_URL" envDefault:"https://www.foxesscloud.com"`
	Timeout  time.Duration `env:"FOXESS_TIMEOUT" envDefault:"30s"`

	// Cache tunables. An empty CacheDir selects <os temp>/foxess_mcp_cache.
	// CacheKey is an optional passphrase for at-rest encryption; without it
	// an ephemeral session key is used and the disk cache does not survive
	// restarts.
	CacheDir     string        `env:"FOXESS_CACHE_DIR"`
	CacheKey     string        `env:"FOXESS_CACHE_KEY"`
	CacheSize    int           `env:"FOXESS_CACHE_SIZE" envDefault:"1000"`
	CacheTTL     time.Duration `env:"FOXESS_CACHE_TTL" envDefault:"300s"`
	CacheEncrypt bool          `env:"FOXESS_CACHE_ENCRYPT" envDefault:"true"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "foxess_mcp_cache")
	}
	return cfg, nil
}
