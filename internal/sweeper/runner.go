package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/internal/telemetry/metric"
	"github.com/yndnr/sessfile-go/pkg/filestore"
)

// Purger is the part of filestore.Store the runner drives.
type Purger interface {
	Purge(ctx context.Context) (filestore.PurgeResult, error)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool

	// Metrics records sweep runs. Nil disables recording.
	Metrics *metric.Registry

	Logger *slog.Logger
}

// RunnerConfigFrom maps the sweep section to a RunnerConfig.
func RunnerConfigFrom(s SweepSection) RunnerConfig {
	return RunnerConfig{
		Interval:   s.Interval,
		Timeout:    s.Timeout,
		RunOnStart: s.RunOnStart,
	}
}

// Runner purges a store on a fixed interval.
type Runner struct {
	purger Purger
	cfg    RunnerConfig
	logger *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// NewRunner creates a runner for p.
func NewRunner(p Purger, cfg RunnerConfig) (*Runner, error) {
	if p == nil {
		return nil, errors.New("sweeper: purger is nil")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("sweeper: interval must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		purger: p,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "sweeper"),
	}, nil
}

// Run sweeps until ctx is canceled. It returns nil on cancellation; a
// failing sweep is logged and does not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("sweeper started", "interval", r.cfg.Interval, "timeout", r.cfg.Timeout)
	defer r.logger.Info("sweeper stopped", "runs", r.runs.Load(), "failures", r.failures.Load())

	if r.cfg.RunOnStart {
		_, _ = r.RunOnce(ctx)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (r *Runner) RunOnce(ctx context.Context) (filestore.PurgeResult, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	ctx = logger.WithRunID(logger.WithLogger(ctx, r.logger), ulid.Make().String())
	log := logger.L(ctx)

	start := time.Now()
	res, err := r.purger.Purge(ctx)
	r.runs.Add(1)

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
		r.failures.Add(1)
	default:
		result = "error"
		r.failures.Add(1)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordSweep(result, time.Since(start), res.Expired, res.Corrupt, res.TempFiles)
	}

	if err != nil {
		log.Warn("sweep failed",
			"result", result,
			"removed", res.Removed(),
			"failed", res.Failed,
			"error", err)
		return res, err
	}
	log.Debug("sweep done",
		"scanned", res.Scanned,
		"removed", res.Removed(),
		"temp_files", res.TempFiles)
	return res, nil
}

// Runs returns how many sweeps have run and how many failed.
func (r *Runner) Runs() (total, failed int64) {
	return r.runs.Load(), r.failures.Load()
}
