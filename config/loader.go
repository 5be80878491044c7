// Package config loads and validates the application configuration from a
// yaml file, with .env / environment overrides for addresses and URLs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied after load. The staleness window and sweep cadence are
// deliberately configuration with visible defaults, not hidden constants.
const (
	DefaultPort               = 16080
	DefaultStalenessWindowSec = 60
	DefaultSweepIntervalSec   = 5
	DefaultMaxSpeedKmh        = 150
	DefaultBufferSize         = 64
	DefaultMinSpeedKmh        = 3
	DefaultFallbackSpeedKmh   = 20
	DefaultRTPollIntervalMS   = 15000
)

// Load reads the config file (path, or "config.yml" when empty), applies
// environment overrides, validates, and fills defaults.
func Load(path string) (*AppConfig, error) {
	// .env into the environment; missing file is fine.
	_ = godotenv.Load()

	paths := []string{"config.yml"}
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	if cfg.GTFS.StaticURL == "" && cfg.GTFS.StaticPath == "" {
		return nil, errors.New("config: gtfs.staticURL or gtfs.staticPath must be set")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("GTFS_STATIC_URL"); v != "" {
		cfg.GTFS.StaticURL = v
	}
	if v := os.Getenv("GTFS_STATIC_PATH"); v != "" {
		cfg.GTFS.StaticPath = v
	}
	if v := os.Getenv("GTFSRT_VEHICLE_POSITIONS_URL"); v != "" {
		cfg.Ingest.RTFeedURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Relay.NATSURL = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Fleet.StalenessWindowSec == 0 {
		cfg.Fleet.StalenessWindowSec = DefaultStalenessWindowSec
	}
	if cfg.Fleet.SweepIntervalSec == 0 {
		cfg.Fleet.SweepIntervalSec = DefaultSweepIntervalSec
	}
	if cfg.Ingest.MaxSpeedKmh == 0 {
		cfg.Ingest.MaxSpeedKmh = DefaultMaxSpeedKmh
	}
	if cfg.Ingest.RTPollIntervalMS == 0 {
		cfg.Ingest.RTPollIntervalMS = DefaultRTPollIntervalMS
	}
	if cfg.Broadcast.BufferSize == 0 {
		cfg.Broadcast.BufferSize = DefaultBufferSize
	}
	if cfg.ETA.MinSpeedKmh == 0 {
		cfg.ETA.MinSpeedKmh = DefaultMinSpeedKmh
	}
	if cfg.ETA.FallbackSpeedKmh == 0 {
		cfg.ETA.FallbackSpeedKmh = DefaultFallbackSpeedKmh
	}
}
