// Package config holds the admin CLI settings: defaults, an optional JSON
// file and the environment, in that order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/userportal/internal/timex"
)

// Config holds runtime settings for the user portal CLI.
type Config struct {
	ServerURL string        `env:"USERPORTAL_SERVER"`
	TokenFile string        `env:"USERPORTAL_TOKEN_FILE"`
	Timeout   time.Duration `env:"USERPORTAL_TIMEOUT"`
}

// JsonConfig is the on-disk shape of the CLI configuration file.
type JsonConfig struct {
	ServerURL string          `json:"server_url"`
	TokenFile string          `json:"token_file"`
	Timeout   *timex.Duration `json:"timeout"`
}

// LoadDefaults populates c with local development defaults. The token is
// kept under the user's config directory when one is available.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8081"
	c.Timeout = 10 * time.Second

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	c.TokenFile = filepath.Join(dir, "userportal", "token")
}

// Load builds a Config from defaults, the JSON file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var jc JsonConfig
		if err := json.Unmarshal(data, &jc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if jc.ServerURL != "" {
			cfg.ServerURL = jc.ServerURL
		}
		if jc.TokenFile != "" {
			cfg.TokenFile = jc.TokenFile
		}
		if jc.Timeout != nil {
			cfg.Timeout = jc.Timeout.Duration
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
