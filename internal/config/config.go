package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEndpoint is the public padchat gateway. Override with
// PADCHAT_ENDPOINT when running against a self-hosted gateway.
const DefaultEndpoint = "ws://54.223.73.175:8788/wx"

// Config holds all environment-based configuration for the padchat client.
type Config struct {
	// Gateway WebSocket endpoint.
	Endpoint string `env:"PADCHAT_ENDPOINT" envDefault:""`

	// Gateway access token (required).
	Token string `env:"PADCHAT_TOKEN"`

	// Root directory for the entity cache and memory slot. Defaults to
	// ~/.padchat/ after validation.
	CacheDir string `env:"PADCHAT_CACHE_DIR"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the gateway token to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.CacheDir == "" {
		dir, err := defaultCacheDir()
		if err != nil {
			return nil, err
		}

		cfg.CacheDir = dir
	}

	// Resolve CacheDir to an absolute path at startup so the per-account
	// cache directories are unambiguous regardless of later chdir calls.
	absDir, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir to absolute path: %w", err)
	}

	cfg.CacheDir = absDir

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("" +
			"PADCHAT_TOKEN is not set\n" +
			"\n" +
			"  the padchat gateway requires an access token; obtain one\n" +
			"  from your gateway provider and export it:\n" +
			"\n" +
			"    export PADCHAT_TOKEN=<your token>\n")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".padchat"), nil
}
