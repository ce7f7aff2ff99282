package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cipherdrop/internal/flagx"
	"github.com/dmitrijs2005/cipherdrop/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. The timeout
// accepts "30s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL  string         `json:"server"`
	Token      string         `json:"token"`
	DBPath     string         `json:"db"`
	Retries    *int           `json:"retries"`
	Timeout    timex.Duration `json:"timeout"`
	LogBackend string         `json:"log_backend"`
}

// parseJson overlays Config with values from the file given by -c or
// -config. Keys absent from the file keep their current value. Read and
// unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.Token, jc.Token)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.LogBackend, jc.LogBackend)
	if jc.Retries != nil {
		cfg.Retries = *jc.Retries
	}
	if jc.Timeout.Duration > 0 {
		cfg.Timeout = jc.Timeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
