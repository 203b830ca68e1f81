// Package config defines server and client configuration and their loaders.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"runtime"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config contains server process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// DatasetPath points at a YAML or XLSX dataset. Empty uses the embedded seed.
	DatasetPath string `koanf:"dataset_path"`

	// StoreBackend is "memory" or "sqlite".
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// UpdateQueueSize bounds the in-memory score update queue.
	UpdateQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of score update workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the update idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// TopRegions is the default size of the top regions list.
	TopRegions int `koanf:"top_regions"`

	// MaxTopRegions caps GET /api/top_regions?limit.
	MaxTopRegions int `koanf:"max_top_regions"`

	// TrainRatio is the share of states used to fit the predictor.
	TrainRatio float64 `koanf:"train_ratio"`

	// SplitSeed makes the train/test split reproducible.
	SplitSeed int64 `koanf:"split_seed"`

	// MetricsNamespace and MetricsSubsystem prefix every Prometheus metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsDeployment, when set, is attached to every metric as the
	// "deployment" label.
	MetricsDeployment string `koanf:"metrics_deployment"`

	// MetricsBuckets are the latency histogram bounds in milliseconds. Set
	// them from the YAML file; env values are not split into a list.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":5000",
		StoreBackend:    BackendMemory,
		SQLitePath:      "ecoinvest.db",
		UpdateQueueSize: 10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      50_000,
		TopRegions:      10,
		MaxTopRegions:   100,
		TrainRatio:      0.8,
		SplitSeed:       42,

		MetricsNamespace: "ecoinvest",
		MetricsSubsystem: "recommendations",
		MetricsBuckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
	}
}

// ClientConfig configures the recommend CLI.
type ClientConfig struct {
	// BaseURL of the recommendation server.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds one submission round trip.
	Timeout time.Duration `koanf:"timeout"`

	// LogLevel controls CLI log verbosity.
	LogLevel string `koanf:"log_level"`

	// LatestOnly drops responses of superseded submissions.
	LatestOnly bool `koanf:"latest_only"`

	// NoColor disables coloured bars.
	NoColor bool `koanf:"no_color"`

	// Width overrides the detected terminal width. Zero means detect.
	Width int `koanf:"width"`
}

// NewClient returns a ClientConfig populated with defaults.
func NewClient() *ClientConfig {
	return &ClientConfig{
		BaseURL:  "http://localhost:5000",
		Timeout:  30 * time.Second,
		LogLevel: "warn",
	}
}
