package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"streamtor/pkg/env"
	"streamtor/pkg/logger"
	"streamtor/pkg/paths"
)

// Config holds application configuration. It is loaded once at startup
// and passed explicitly into the pipeline; nothing reads it globally.
type Config struct {
	// Addon settings
	AddonPort    int    `json:"addon_port"`
	AddonBaseURL string `json:"addon_base_url"`
	LogLevel     string `json:"log_level"`

	// External services
	CatalogURL     string `json:"catalog_url"`
	AggregatorURL  string `json:"aggregator_url"`
	DebridBaseURL  string `json:"debrid_base_url"`
	DebridAPIToken string `json:"-"`

	// Resolution pipeline knobs
	TorrentLimit           int `json:"torrent_limit"`            // max candidates fed to the batch scheduler
	AvailabilityCheckLimit int `json:"availability_check_limit"` // max hashes per bulk availability call
	MaxStreams             int `json:"max_streams"`              // stop scheduling once this many streams resolved
	MaxConcurrency         int `json:"max_concurrency"`          // candidates in flight per batch

	// Cache TTLs
	MetadataTTLHours  int `json:"metadata_ttl_hours"`
	TorrentsTTLHours  int `json:"torrents_ttl_hours"`
	StreamsTTLMinutes int `json:"streams_ttl_minutes"`

	// Whole-request deadline. 0 disables it.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// Internal - where was this config loaded from?
	LoadedPath string `json:"-"`
}

// MetadataTTL returns the metadata cache TTL as a duration.
func (c *Config) MetadataTTL() time.Duration {
	return time.Duration(c.MetadataTTLHours) * time.Hour
}

// TorrentsTTL returns the search-result cache TTL as a duration.
func (c *Config) TorrentsTTL() time.Duration {
	return time.Duration(c.TorrentsTTLHours) * time.Hour
}

// StreamsTTL returns the resolved-stream cache TTL as a duration.
func (c *Config) StreamsTTL() time.Duration {
	return time.Duration(c.StreamsTTLMinutes) * time.Minute
}

// RequestTimeout returns the whole-request deadline, or 0 when disabled.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load is intended for startup only. It loads configuration from config.json,
// applies environment variable overrides once, then saves the merged config.
// Environment variables are not read again after startup.
// Priority: Environment variables (if not empty) > config.json > defaults
func Load() (*Config, error) {
	dataDir := paths.GetDataDir()
	configPath := filepath.Join(dataDir, "config.json")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := &Config{
		AddonPort:              7001,
		AddonBaseURL:           "http://localhost:7001",
		LogLevel:               "INFO",
		CatalogURL:             "https://v3-cinemeta.strem.io",
		AggregatorURL:          "https://torrentio.strem.io",
		DebridBaseURL:          "https://api.real-debrid.com/rest/1.0",
		TorrentLimit:           10,
		AvailabilityCheckLimit: 20,
		MaxStreams:             4,
		MaxConcurrency:         3,
		MetadataTTLHours:       24,
		TorrentsTTLHours:       6,
		StreamsTTLMinutes:      30,
		RequestTimeoutSeconds:  0,
		LoadedPath:             configPath,
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			logger.Warn("Failed to load config, using defaults", "path", configPath, "err", err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	}

	if cfg.DebridAPIToken == "" {
		logger.Warn("No debrid API token configured; stream resolution will return empty results")
	}

	return cfg, nil
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(c)
}

// Save saves the current configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = "config.json"
	}
	return c.SaveFile(path)
}

// SaveFile saves the current configuration to a JSON file
func (c *Config) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// keySet returns true if s is in list.
func keySet(list []string, s string) bool {
	for _, k := range list {
		if k == s {
			return true
		}
	}
	return false
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if keySet(keys, env.KeyAddonPort) {
		cfg.AddonPort = o.AddonPort
	}
	if keySet(keys, env.KeyAddonBaseURL) {
		cfg.AddonBaseURL = o.AddonBaseURL
	}
	if keySet(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if keySet(keys, env.KeyCatalogURL) {
		cfg.CatalogURL = o.CatalogURL
	}
	if keySet(keys, env.KeyAggregatorURL) {
		cfg.AggregatorURL = o.AggregatorURL
	}
	if keySet(keys, env.KeyDebridBaseURL) {
		cfg.DebridBaseURL = o.DebridBaseURL
	}
	if keySet(keys, env.KeyDebridAPIToken) {
		cfg.DebridAPIToken = o.DebridAPIToken
	}
	if keySet(keys, env.KeyTorrentLimit) {
		cfg.TorrentLimit = o.TorrentLimit
	}
	if keySet(keys, env.KeyAvailabilityCheckLimit) {
		cfg.AvailabilityCheckLimit = o.AvailabilityCheckLimit
	}
	if keySet(keys, env.KeyMaxStreams) {
		cfg.MaxStreams = o.MaxStreams
	}
	if keySet(keys, env.KeyMaxConcurrency) {
		cfg.MaxConcurrency = o.MaxConcurrency
	}
	if keySet(keys, env.KeyMetadataTTLHours) {
		cfg.MetadataTTLHours = o.MetadataTTLHours
	}
	if keySet(keys, env.KeyTorrentsTTLHours) {
		cfg.TorrentsTTLHours = o.TorrentsTTLHours
	}
	if keySet(keys, env.KeyStreamsTTLMinutes) {
		cfg.StreamsTTLMinutes = o.StreamsTTLMinutes
	}
	if keySet(keys, env.KeyRequestTimeoutSeconds) {
		cfg.RequestTimeoutSeconds = o.RequestTimeoutSeconds
	}
}

// GetEnvOverrideKeys returns config JSON keys that have environment variable
// overrides set. These values will be overwritten on next restart.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
