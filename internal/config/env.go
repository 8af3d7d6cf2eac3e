package config

import (
	"strconv"
	"strings"
	"time"
)

// Environment variables read by Load.
const (
	EnvGoVersion         = "PODSTRAP_GO_VERSION"
	EnvWorkDir           = "PODSTRAP_WORKDIR"
	EnvManifest          = "PODSTRAP_MANIFEST"
	EnvProbeTimeout      = "PODSTRAP_PROBE_TIMEOUT"
	EnvKeepaliveInterval = "PODSTRAP_KEEPALIVE_INTERVAL"
	EnvMinFreeDiskMB     = "PODSTRAP_MIN_FREE_DISK_MB"
	EnvFetchAttempts     = "PODSTRAP_FETCH_ATTEMPTS"
	EnvRetryDelay        = "PODSTRAP_RETRY_DELAY"
	EnvArchiveBucket     = "PODSTRAP_ARCHIVE_BUCKET"
	EnvArchiveEndpoint   = "PODSTRAP_ARCHIVE_ENDPOINT"
	EnvArchiveRegion     = "PODSTRAP_ARCHIVE_REGION"
	EnvArchivePrefix     = "PODSTRAP_ARCHIVE_PREFIX"
	EnvArchiveAccessKey  = "PODSTRAP_ARCHIVE_ACCESS_KEY"
	EnvArchiveSecretKey  = "PODSTRAP_ARCHIVE_SECRET_KEY"
)

// Defaults for values that can be overridden from the environment.
const (
	DefaultProbeTimeout      = 5 * time.Second
	DefaultKeepaliveInterval = 60 * time.Second
	DefaultFetchAttempts     = 1
	DefaultRetryDelay        = 2 * time.Second
	DefaultArchiveRegion     = "us-east-1"
	DefaultArchivePrefix     = "podstrap"
)

// parseDuration parses a duration from an environment variable.
// If the variable is not set, parsing fails or the value is not positive,
// the default value is returned.
func parseDuration(getenv func(string) string, envVar string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(getenv(envVar))
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(getenv func(string) string, envVar string, defaultVal int) int {
	val := strings.TrimSpace(getenv(envVar))
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

// parseString returns the trimmed variable or the default when unset.
func parseString(getenv func(string) string, envVar, defaultVal string) string {
	if val := strings.TrimSpace(getenv(envVar)); val != "" {
		return val
	}
	return defaultVal
}
