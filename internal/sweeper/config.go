package sweeper

import "time"

// Config is the root configuration of the operator tool.
type Config struct {
	Store   StoreSection   `koanf:"store"`
	Sweep   SweepSection   `koanf:"sweep"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// StoreSection describes the session directory layout.
type StoreSection struct {
	Dir    string `koanf:"dir"`
	Prefix string `koanf:"prefix"`
	Suffix string `koanf:"suffix"`

	// Codec is "json" or "binary".
	Codec string `koanf:"codec"`

	// TempMaxAge is how old an orphaned temporary file must be before a
	// sweep removes it.
	TempMaxAge time.Duration `koanf:"temp_max_age"`

	NoSyncDir bool `koanf:"no_sync_dir"`
}

// SweepSection configures the periodic purge.
type SweepSection struct {
	Interval time.Duration `koanf:"interval"`

	// Timeout bounds a single sweep. Zero means no bound.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps the files inspected per second. Zero is unlimited.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	// RunOnStart sweeps immediately instead of waiting one interval.
	RunOnStart bool `koanf:"run_on_start"`
}

// MetricsSection configures the /metrics listener. An empty Addr
// disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`
}
