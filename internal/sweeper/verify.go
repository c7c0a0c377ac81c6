package sweeper

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/pkg/codec"
)

// Verify validates the configuration. It reports every problem found.
func Verify(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return errors.Join(
		verifyStore(&cfg.Store),
		verifySweep(&cfg.Sweep),
		verifyMetrics(&cfg.Metrics),
		verifyLog(&cfg.Log),
	)
}

func verifyStore(cfg *StoreSection) error {
	var errs []error
	if cfg.Dir == "" {
		errs = append(errs, errors.New("store.dir is required"))
	}
	if _, err := codec.ByName(cfg.Codec); err != nil {
		errs = append(errs, fmt.Errorf("store.codec: %w", err))
	}
	if cfg.TempMaxAge < 0 {
		errs = append(errs, errors.New("store.temp_max_age must not be negative"))
	}
	return errors.Join(errs...)
}

func verifySweep(cfg *SweepSection) error {
	var errs []error
	if cfg.Interval <= 0 {
		errs = append(errs, errors.New("sweep.interval must be positive"))
	}
	if cfg.Timeout < 0 {
		errs = append(errs, errors.New("sweep.timeout must not be negative"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("sweep.rate_limit must not be negative"))
	}
	if cfg.RateLimit > 0 && cfg.Burst < 1 {
		errs = append(errs, errors.New("sweep.burst must be at least 1 when rate_limit is set"))
	}
	return errors.Join(errs...)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("metrics.addr: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	lc := logger.Config{Level: cfg.Level, Format: cfg.Format}
	if err := lc.Verify(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
