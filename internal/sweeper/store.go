package sweeper

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/pkg/codec"
	"github.com/yndnr/sessfile-go/pkg/filestore"
)

// StoreConfig converts the store and sweep sections to a filestore.Config.
func StoreConfig(cfg *Config, log *slog.Logger, reg prometheus.Registerer) (filestore.Config, error) {
	if cfg == nil {
		return filestore.Config{}, fmt.Errorf("config is nil")
	}

	c, err := codec.ByName(cfg.Store.Codec)
	if err != nil {
		return filestore.Config{}, err
	}

	fc := filestore.DefaultConfig(cfg.Store.Dir)
	fc.Prefix = cfg.Store.Prefix
	fc.Suffix = cfg.Store.Suffix
	fc.Codec = c
	fc.Logger = log
	fc.Registerer = reg
	fc.NoSyncDir = cfg.Store.NoSyncDir
	if cfg.Store.TempMaxAge > 0 {
		fc.TempMaxAge = cfg.Store.TempMaxAge
	}
	if cfg.Sweep.RateLimit > 0 {
		fc.PurgeLimiter = rate.NewLimiter(rate.Limit(cfg.Sweep.RateLimit), cfg.Sweep.Burst)
	}
	return fc, nil
}

// OpenStore opens the configured session directory.
func OpenStore(cfg *Config, log *slog.Logger, reg prometheus.Registerer) (*filestore.Store, error) {
	fc, err := StoreConfig(cfg, log, reg)
	if err != nil {
		return nil, err
	}
	return filestore.New(fc)
}

// NewLogger builds the logger described by the log section.
func NewLogger(cfg *LogSection, out io.Writer) (*slog.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Output:    out,
	})
}
