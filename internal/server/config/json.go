package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cipherdrop/internal/flagx"
	"github.com/dmitrijs2005/cipherdrop/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "10m" and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr              string          `json:"http_addr"`
	DatabaseDSN           string          `json:"database_dsn"`
	SecretKey             string          `json:"secret_key"`
	StorageBackend        string          `json:"storage_backend"`
	S3RootUser            string          `json:"s3_root_user"`
	S3RootPassword        string          `json:"s3_root_password"`
	S3Bucket              string          `json:"s3_bucket"`
	S3Region              string          `json:"s3_region"`
	S3BaseEndpoint        string          `json:"s3_base_endpoint"`
	AzureConnectionString string          `json:"azure_connection_string"`
	AzureContainer        string          `json:"azure_container"`
	ShareMaxBytes         int64           `json:"share_max_bytes"`
	DriveMaxBytes         int64           `json:"drive_max_bytes"`
	DriveQuotaBytes       int64           `json:"drive_quota_bytes"`
	DriveMemoryBytes      int64           `json:"drive_memory_bytes"`
	ShareMaxExpiry        timex.Duration  `json:"share_max_expiry"`
	RequestTTL            timex.Duration  `json:"request_ttl"`
	SweepInterval         *timex.Duration `json:"sweep_interval"`
	TombstoneRetention    timex.Duration  `json:"tombstone_retention"`
	CleanupTimeout        timex.Duration  `json:"cleanup_timeout"`
	LogBackend            string          `json:"log_backend"`
}

// parseJson overlays values from the file named by -c/-config. Keys absent
// from the file keep their current value. sweep_interval is a pointer so
// that an explicit 0 can switch the sweeper off.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.AzureConnectionString, c.AzureConnectionString)
	setString(&config.AzureContainer, c.AzureContainer)
	setString(&config.LogBackend, c.LogBackend)

	if c.ShareMaxBytes > 0 {
		config.ShareMaxBytes = c.ShareMaxBytes
	}
	if c.DriveMaxBytes > 0 {
		config.DriveMaxBytes = c.DriveMaxBytes
	}
	if c.DriveQuotaBytes > 0 {
		config.DriveQuotaBytes = c.DriveQuotaBytes
	}
	if c.DriveMemoryBytes > 0 {
		config.DriveMemoryBytes = c.DriveMemoryBytes
	}
	if c.ShareMaxExpiry.Duration > 0 {
		config.ShareMaxExpiry = c.ShareMaxExpiry.Duration
	}
	if c.RequestTTL.Duration > 0 {
		config.RequestTTL = c.RequestTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.TombstoneRetention.Duration > 0 {
		config.TombstoneRetention = c.TombstoneRetention.Duration
	}
	if c.CleanupTimeout.Duration > 0 {
		config.CleanupTimeout = c.CleanupTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
