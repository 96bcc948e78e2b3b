// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"os"
	"strconv"
)

// Environment variable names (single source of truth)
const (
	AddonPort              = "ADDON_PORT"
	AddonBaseURL           = "ADDON_BASE_URL"
	LogLevelVar            = "LOG_LEVEL"
	CatalogURL             = "CATALOG_URL"
	AggregatorURL          = "AGGREGATOR_URL"
	DebridBaseURL          = "DEBRID_BASE_URL"
	DebridAPIToken         = "DEBRID_API_TOKEN"
	TorrentLimit           = "TORRENT_LIMIT"
	AvailabilityCheckLimit = "AVAILABILITY_CHECK_LIMIT"
	MaxStreams             = "MAX_STREAMS"
	MaxConcurrency         = "MAX_CONCURRENCY"
	MetadataTTLHours       = "METADATA_TTL_HOURS"
	TorrentsTTLHours       = "TORRENTS_TTL_HOURS"
	StreamsTTLMinutes      = "STREAMS_TTL_MINUTES"
	RequestTimeoutSeconds  = "REQUEST_TIMEOUT_SECONDS"
)

// Config JSON keys returned alongside overrides, so env-set values
// override file values per setting rather than wholesale.
const (
	KeyAddonPort              = "addon_port"
	KeyAddonBaseURL           = "addon_base_url"
	KeyLogLevel               = "log_level"
	KeyCatalogURL             = "catalog_url"
	KeyAggregatorURL          = "aggregator_url"
	KeyDebridBaseURL          = "debrid_base_url"
	KeyDebridAPIToken         = "debrid_api_token"
	KeyTorrentLimit           = "torrent_limit"
	KeyAvailabilityCheckLimit = "availability_check_limit"
	KeyMaxStreams             = "max_streams"
	KeyMaxConcurrency         = "max_concurrency"
	KeyMetadataTTLHours       = "metadata_ttl_hours"
	KeyTorrentsTTLHours       = "torrents_ttl_hours"
	KeyStreamsTTLMinutes      = "streams_ttl_minutes"
	KeyRequestTimeoutSeconds  = "request_timeout_seconds"
)

// LogLevel returns LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	if v := os.Getenv(LogLevelVar); v != "" {
		return v
	}
	return "INFO"
}

// ConfigOverrides holds all config values that can be set via environment variables.
type ConfigOverrides struct {
	AddonPort              int
	AddonBaseURL           string
	LogLevel               string
	CatalogURL             string
	AggregatorURL          string
	DebridBaseURL          string
	DebridAPIToken         string
	TorrentLimit           int
	AvailabilityCheckLimit int
	MaxStreams             int
	MaxConcurrency         int
	MetadataTTLHours       int
	TorrentsTTLHours       int
	StreamsTTLMinutes      int
	RequestTimeoutSeconds  int
}

// ReadConfigOverrides reads all recognized environment variables and
// returns the overrides plus the list of config JSON keys that were set.
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	readString := func(envName, key string, dst *string) {
		if v := os.Getenv(envName); v != "" {
			*dst = v
			keys = append(keys, key)
		}
	}
	readInt := func(envName, key string, dst *int) {
		if v := os.Getenv(envName); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
				keys = append(keys, key)
			}
		}
	}

	readInt(AddonPort, KeyAddonPort, &o.AddonPort)
	readString(AddonBaseURL, KeyAddonBaseURL, &o.AddonBaseURL)
	readString(LogLevelVar, KeyLogLevel, &o.LogLevel)
	readString(CatalogURL, KeyCatalogURL, &o.CatalogURL)
	readString(AggregatorURL, KeyAggregatorURL, &o.AggregatorURL)
	readString(DebridBaseURL, KeyDebridBaseURL, &o.DebridBaseURL)
	readString(DebridAPIToken, KeyDebridAPIToken, &o.DebridAPIToken)
	readInt(TorrentLimit, KeyTorrentLimit, &o.TorrentLimit)
	readInt(AvailabilityCheckLimit, KeyAvailabilityCheckLimit, &o.AvailabilityCheckLimit)
	readInt(MaxStreams, KeyMaxStreams, &o.MaxStreams)
	readInt(MaxConcurrency, KeyMaxConcurrency, &o.MaxConcurrency)
	readInt(MetadataTTLHours, KeyMetadataTTLHours, &o.MetadataTTLHours)
	readInt(TorrentsTTLHours, KeyTorrentsTTLHours, &o.TorrentsTTLHours)
	readInt(StreamsTTLMinutes, KeyStreamsTTLMinutes, &o.StreamsTTLMinutes)
	readInt(RequestTimeoutSeconds, KeyRequestTimeoutSeconds, &o.RequestTimeoutSeconds)

	return o, keys
}

// OverrideKeys returns config JSON keys that currently have environment
// overrides set. Values for these keys will be overwritten on restart.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}
