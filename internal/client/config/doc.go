// Package config loads runtime configuration for the cipherdrop CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config.
//  3. CIPHERDROP_* environment variables.
//  4. Persistent command-line flags bound by BindFlags.
//
// # JSON schema
//
//	{
//	  "server": "https://drop.example",
//	  "token": "eyJ...",
//	  "db": "/home/me/.config/cipherdrop/client.db",
//	  "retries": 3,
//	  "timeout": "5m",
//	  "log_backend": "zap"
//	}
package config
