package config

import "time"

// Config holds runtime settings for the cipherdrop CLI.
type Config struct {
	// ServerURL is the API root, e.g. http://127.0.0.1:8080.
	ServerURL string `env:"CIPHERDROP_SERVER"`
	// Token is the bearer token for drive commands.
	Token string `env:"CIPHERDROP_TOKEN"`
	// DBPath is the SQLite file with request keys. Empty means the
	// default file under the user config directory.
	DBPath     string        `env:"CIPHERDROP_DB"`
	Retries    int           `env:"CIPHERDROP_RETRIES"`
	Timeout    time.Duration `env:"CIPHERDROP_TIMEOUT"`
	LogBackend string        `env:"CIPHERDROP_LOG_BACKEND"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Retries = 3
	c.Timeout = 5 * time.Minute
	c.LogBackend = "slog"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and the environment. Command-line flags are bound on top
// by BindFlags. Malformed input panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	return cfg
}
