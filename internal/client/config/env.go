package config

import "github.com/caarlos0/env/v6"

// parseEnv overlays CIPHERDROP_* variables. Unset variables keep the
// current value.
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
