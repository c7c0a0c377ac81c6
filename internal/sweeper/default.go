package sweeper

import (
	"time"

	"github.com/yndnr/sessfile-go/pkg/filestore"
)

// Default configuration values.
const (
	DefaultDir      = "/var/lib/sessfile"
	DefaultCodec    = "json"
	DefaultInterval = 5 * time.Minute
	DefaultTimeout  = 2 * time.Minute
	DefaultBurst    = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreSection{
			Dir:        DefaultDir,
			Codec:      DefaultCodec,
			TempMaxAge: filestore.DefaultTempMaxAge,
		},
		Sweep: SweepSection{
			Interval:   DefaultInterval,
			Timeout:    DefaultTimeout,
			Burst:      DefaultBurst,
			RunOnStart: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
