package command

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessfile-go/internal/infra/confloader"
	"github.com/yndnr/sessfile-go/internal/infra/shutdown"
	"github.com/yndnr/sessfile-go/internal/sweeper"
	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/internal/telemetry/metric"
)

const shutdownTimeout = 10 * time.Second

// SweepCommand returns the periodic sweeper command.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Purge the directory periodically until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Time between sweeps (overrides sweep.interval)",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Files inspected per second, 0 for unlimited (overrides sweep.rate_limit)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics on this address (overrides metrics.addr)",
			},
		},
		Action: runSweep,
	}
}

func runSweep(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	reg := metric.NewRegistry()
	store, err := sweeper.OpenStore(e.cfg, e.log, reg.Registerer())
	if err != nil {
		return err
	}
	dir := metric.NewDirCollector(store.Config().Dir, e.cfg.Store.Prefix, e.cfg.Store.Suffix)
	if err := reg.Registerer().Register(dir); err != nil {
		return err
	}

	h := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(e.log))
	ctx, stop := h.Notify(c.Context)
	defer stop()

	if addr := e.cfg.Metrics.Addr; addr != "" {
		served := make(chan error, 1)
		go func() {
			err := reg.Serve(ctx, addr)
			if err != nil {
				e.log.Error("metrics listener failed", "addr", addr, "error", err)
			}
			served <- err
		}()
		h.OnShutdown("metrics", func(sctx context.Context) error {
			select {
			case err := <-served:
				return err
			case <-sctx.Done():
				return sctx.Err()
			}
		})
		e.log.Info("serving metrics", "addr", addr)
	}

	if path := e.loader.FilePath(); path != "" {
		w, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log))
		if err != nil {
			return err
		}
		if err := w.Watch(path); err != nil {
			_ = w.Stop()
			return err
		}
		w.OnChange(func(string) { e.reloadLogLevel() })
		w.StartAsync()
		h.OnShutdown("config-watcher", func(context.Context) error {
			return w.Stop()
		})
	}

	rc := sweeper.RunnerConfigFrom(e.cfg.Sweep)
	rc.Metrics = reg
	rc.Logger = e.log
	runner, err := sweeper.NewRunner(store, rc)
	if err != nil {
		return errors.Join(err, h.Shutdown())
	}

	runErr := runner.Run(ctx)
	return errors.Join(runErr, h.Shutdown())
}

// reloadLogLevel re-reads the configuration and applies a changed log
// level. Other settings take effect on restart.
func (e *env) reloadLogLevel() {
	cfg, err := e.load()
	if err != nil {
		e.log.Warn("ignoring configuration change", "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		e.log.Warn("ignoring log level change", "level", cfg.Log.Level, "error", err)
		return
	}
	e.log.Info("log level changed", "level", cfg.Log.Level)
}
