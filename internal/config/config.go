package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds client configuration sourced from the environment.
type Config struct {
	// BaseURL is the API root, including the /api/ prefix.
	BaseURL string `env:"SPLITBOOK_API_URL" envDefault:"http://127.0.0.1:8000/api/"`
	// CredentialsPath is where the token pair persists between runs.
	// Empty means the default under the user config directory.
	CredentialsPath string        `env:"SPLITBOOK_CREDENTIALS"`
	RequestTimeout  time.Duration `env:"SPLITBOOK_TIMEOUT" envDefault:"30s"`
	Debug           bool          `env:"SPLITBOOK_DEBUG" envDefault:"false"`
}

// Load reads an optional .env file and parses configuration from the
// environment. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.CredentialsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		cfg.CredentialsPath = filepath.Join(dir, "splitbook", "credentials.db")
	}

	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("request timeout must be positive")
	}

	return cfg, nil
}
