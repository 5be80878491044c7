package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 18080
  metricsAddr: ":9090"
gtfs:
  staticPath: ./gtfs.zip
  agencyID: CITY
fleet:
  stalenessWindowSec: 90
  sweepIntervalSec: 10
ingest:
  maxSpeedKmh: 120
broadcast:
  bufferSize: 32
eta:
  minSpeedKmh: 5
  fallbackSpeedKmh: 18
  hourlySpeedKmh:
    8: 12
    17: 13
relay:
  natsURL: nats://127.0.0.1:4222
  subjectPrefix: vehicles
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 18080 || cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Fleet.StalenessWindowSec != 90 || cfg.Fleet.SweepIntervalSec != 10 {
		t.Errorf("fleet = %+v", cfg.Fleet)
	}
	if cfg.Ingest.MaxSpeedKmh != 120 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Broadcast.BufferSize != 32 {
		t.Errorf("broadcast = %+v", cfg.Broadcast)
	}
	if cfg.ETA.HourlySpeedKmh[8] != 12 || cfg.ETA.HourlySpeedKmh[17] != 13 {
		t.Errorf("eta hourly = %+v", cfg.ETA.HourlySpeedKmh)
	}
	if cfg.Relay.NATSURL != "nats://127.0.0.1:4222" || cfg.Relay.SubjectPrefix != "vehicles" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
gtfs:
  staticPath: ./gtfs.zip
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Fleet.StalenessWindowSec != DefaultStalenessWindowSec {
		t.Errorf("staleness window = %d, want %d", cfg.Fleet.StalenessWindowSec, DefaultStalenessWindowSec)
	}
	if cfg.Fleet.SweepIntervalSec != DefaultSweepIntervalSec {
		t.Errorf("sweep interval = %d, want %d", cfg.Fleet.SweepIntervalSec, DefaultSweepIntervalSec)
	}
	if cfg.Ingest.MaxSpeedKmh != DefaultMaxSpeedKmh {
		t.Errorf("max speed = %f, want %f", cfg.Ingest.MaxSpeedKmh, float64(DefaultMaxSpeedKmh))
	}
	if cfg.Broadcast.BufferSize != DefaultBufferSize {
		t.Errorf("buffer size = %d, want %d", cfg.Broadcast.BufferSize, DefaultBufferSize)
	}
	if cfg.ETA.MinSpeedKmh != DefaultMinSpeedKmh || cfg.ETA.FallbackSpeedKmh != DefaultFallbackSpeedKmh {
		t.Errorf("eta = %+v", cfg.ETA)
	}
	if cfg.Ingest.RTPollIntervalMS != DefaultRTPollIntervalMS {
		t.Errorf("rt poll interval = %d, want %d", cfg.Ingest.RTPollIntervalMS, DefaultRTPollIntervalMS)
	}
}

func TestLoad_RequiresGTFSSource(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 16080
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when neither staticURL nor staticPath is set")
	}
}

func TestLoad_RejectsBadStaticURL(t *testing.T) {
	path := writeConfig(t, `
gtfs:
  staticURL: "not a url"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for malformed staticURL")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a mapping\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "19999")
	t.Setenv("GTFS_STATIC_URL", "https://feeds.example/gtfs.zip")
	t.Setenv("NATS_URL", "nats://10.0.0.5:4222")

	path := writeConfig(t, `
server:
  port: 16080
gtfs:
  staticPath: ./gtfs.zip
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 19999 {
		t.Errorf("port = %d, want the PORT override", cfg.Server.Port)
	}
	if cfg.GTFS.StaticURL != "https://feeds.example/gtfs.zip" {
		t.Errorf("staticURL = %q, want the env override", cfg.GTFS.StaticURL)
	}
	if cfg.Relay.NATSURL != "nats://10.0.0.5:4222" {
		t.Errorf("natsURL = %q, want the env override", cfg.Relay.NATSURL)
	}
}
