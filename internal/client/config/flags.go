package config

import "github.com/spf13/pflag"

// BindFlags registers the persistent CLI flags on fs, defaulting each to the
// value already in cfg so that flags override JSON and the environment.
//
//	--server string   API root URL
//	--token string    bearer token for drive commands
//	--db string       path of the local request key database
//	--retries int     retries of failed HTTP calls
//	--timeout dur     overall timeout of one command
//	-c, --config      JSON config file, read before the flags are parsed
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "cipherdrop server URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token for drive commands")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path of the local request key database")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "retries of failed HTTP calls")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout of one command")
	fs.StringVar(&cfg.LogBackend, "log", cfg.LogBackend, "log backend (slog or zap)")
	// consumed by parseJson; declared so the parser accepts it
	fs.StringP("config", "c", "", "JSON config file")
}
