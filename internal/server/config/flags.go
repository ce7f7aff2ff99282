package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/cipherdrop/internal/flagx"
)

var serverFlags = []string{
	"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e",
	"-storage", "-azure-conn", "-azure-container",
	"-share-max-bytes", "-drive-max-bytes", "-drive-quota",
	"-share-max-expiry", "-request-ttl",
	"-sweep", "-tombstone-retention", "-cleanup-timeout",
	"-log-backend",
}

// parseFlags applies command-line flags. Only the flags in serverFlags are
// looked at, so foreign arguments (test runner flags, -c) pass through.
//
//	-a  HTTP bind address        -d  PostgreSQL DSN or "memory"
//	-s  token secret             -u/-p/-b/-g/-e  S3 user, password, bucket, region, endpoint
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN (\"memory\" for the in-process store)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key for drive tokens")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "blob backend: s3, azure or memory")
	fs.StringVar(&config.AzureConnectionString, "azure-conn", config.AzureConnectionString, "Azure storage connection string")
	fs.StringVar(&config.AzureContainer, "azure-container", config.AzureContainer, "Azure blob container")

	fs.Int64Var(&config.ShareMaxBytes, "share-max-bytes", config.ShareMaxBytes, "size ceiling for share and request uploads")
	fs.Int64Var(&config.DriveMaxBytes, "drive-max-bytes", config.DriveMaxBytes, "size ceiling for drive uploads")
	fs.Int64Var(&config.DriveQuotaBytes, "drive-quota", config.DriveQuotaBytes, "per-user drive quota in bytes")
	fs.Int64Var(&config.DriveMemoryBytes, "drive-memory", config.DriveMemoryBytes, "bytes drive transfers may buffer at once")
	fs.DurationVar(&config.ShareMaxExpiry, "share-max-expiry", config.ShareMaxExpiry, "longest allowed share lifetime")
	fs.DurationVar(&config.RequestTTL, "request-ttl", config.RequestTTL, "lifetime of a file request")

	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "expiry sweep interval, 0 disables")
	fs.DurationVar(&config.TombstoneRetention, "tombstone-retention", config.TombstoneRetention, "how long consumed and expired records answer 410")
	fs.DurationVar(&config.CleanupTimeout, "cleanup-timeout", config.CleanupTimeout, "timeout of detached blob deletions")

	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "slog or zap")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
