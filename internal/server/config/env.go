package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays fields tagged with `env:"..."` from the process
// environment. Unset variables leave the current value untouched; a value
// that cannot be parsed panics, like the other sources.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
