package config

// ServerConfig contains the HTTP surface configuration.
type ServerConfig struct {
	Port        int    `yaml:"port" validate:"gt=0"`
	MetricsAddr string `yaml:"metricsAddr"` // empty disables the metrics server
}

// GTFSConfig points at the static reference feed. Exactly one of StaticURL
// and StaticPath must be set.
type GTFSConfig struct {
	StaticURL  string `yaml:"staticURL" validate:"omitempty,url"`
	StaticPath string `yaml:"staticPath"`
	AgencyID   string `yaml:"agencyID"`
}

// FleetConfig tunes the state store. The staleness window and sweep cadence
// are deliberately configuration, not constants.
type FleetConfig struct {
	StalenessWindowSec int `yaml:"stalenessWindowSec" validate:"gte=0"`
	SweepIntervalSec   int `yaml:"sweepIntervalSec" validate:"gte=0"`
}

// IngestConfig tunes the write path and the optional GTFS-RT source.
type IngestConfig struct {
	MaxSpeedKmh      float64 `yaml:"maxSpeedKmh" validate:"gte=0"`
	RTFeedURL        string  `yaml:"rtFeedURL" validate:"omitempty,url"`
	RTPollIntervalMS int     `yaml:"rtPollIntervalMS" validate:"gte=0"`
}

// BroadcastConfig tunes subscriber buffers.
type BroadcastConfig struct {
	BufferSize int `yaml:"bufferSize" validate:"gte=0"`
}

// ETAConfig tunes the estimator.
type ETAConfig struct {
	MinSpeedKmh      float64         `yaml:"minSpeedKmh" validate:"gte=0"`
	FallbackSpeedKmh float64         `yaml:"fallbackSpeedKmh" validate:"gte=0"`
	HourlySpeedKmh   map[int]float64 `yaml:"hourlySpeedKmh"`
}

// RelayConfig enables the NATS egress bridge when NATSURL is set.
type RelayConfig struct {
	NATSURL       string `yaml:"natsURL"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	GTFS      GTFSConfig      `yaml:"gtfs"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	ETA       ETAConfig       `yaml:"eta"`
	Relay     RelayConfig     `yaml:"relay"`
}
