package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/internal/telemetry/metric"
	"github.com/yndnr/sessfile-go/pkg/filestore"
	"github.com/yndnr/sessfile-go/pkg/session"
)

type fakePurger struct {
	calls atomic.Int64
	res   filestore.PurgeResult
	err   error
	runID atomic.Value
}

func (f *fakePurger) Purge(ctx context.Context) (filestore.PurgeResult, error) {
	f.calls.Add(1)
	f.runID.Store(logger.RunIDFromContext(ctx))
	return f.res, f.err
}

func TestNewRunner_Validates(t *testing.T) {
	if _, err := NewRunner(nil, RunnerConfig{Interval: time.Second}); err == nil {
		t.Error("NewRunner(nil) = nil error")
	}
	if _, err := NewRunner(&fakePurger{}, RunnerConfig{}); err == nil {
		t.Error("NewRunner with zero interval = nil error")
	}
}

func TestRunner_RunOnce(t *testing.T) {
	reg := metric.NewRegistry()
	p := &fakePurger{res: filestore.PurgeResult{Scanned: 10, Expired: 3, Corrupt: 1, TempFiles: 2}}
	r, err := NewRunner(p, RunnerConfig{Interval: time.Hour, Metrics: reg, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	res, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Removed() != 4 {
		t.Errorf("Removed() = %d, want 4", res.Removed())
	}
	if id, _ := p.runID.Load().(string); len(id) != 26 {
		t.Errorf("run id = %q, want a ULID", id)
	}
	if v := testutil.ToFloat64(reg.SweepRuns.WithLabelValues("ok")); v != 1 {
		t.Errorf("runs{ok} = %v, want 1", v)
	}
	if v := testutil.ToFloat64(reg.SweepRemoved.WithLabelValues("temp")); v != 2 {
		t.Errorf("removed{temp} = %v, want 2", v)
	}
}

func TestRunner_RunOnceError(t *testing.T) {
	reg := metric.NewRegistry()
	p := &fakePurger{err: session.ErrIO.WithDetails("disk gone")}
	r, _ := NewRunner(p, RunnerConfig{Interval: time.Hour, Metrics: reg, Logger: quietLogger()})

	if _, err := r.RunOnce(context.Background()); !errors.Is(err, session.ErrIO) {
		t.Fatalf("RunOnce err = %v, want ErrIO", err)
	}
	if total, failed := r.Runs(); total != 1 || failed != 1 {
		t.Errorf("Runs() = %d, %d; want 1, 1", total, failed)
	}
	if v := testutil.ToFloat64(reg.SweepRuns.WithLabelValues("error")); v != 1 {
		t.Errorf("runs{error} = %v, want 1", v)
	}
}

func TestRunner_TimeoutIsCanceled(t *testing.T) {
	reg := metric.NewRegistry()
	p := &fakePurger{err: fmt.Errorf("purge: %w", context.DeadlineExceeded)}
	r, _ := NewRunner(p, RunnerConfig{Interval: time.Hour, Timeout: time.Millisecond, Metrics: reg, Logger: quietLogger()})

	_, _ = r.RunOnce(context.Background())
	if v := testutil.ToFloat64(reg.SweepRuns.WithLabelValues("canceled")); v != 1 {
		t.Errorf("runs{canceled} = %v, want 1", v)
	}
}

func TestRunner_Run(t *testing.T) {
	p := &fakePurger{}
	r, err := NewRunner(p, RunnerConfig{
		Interval:   10 * time.Millisecond,
		RunOnStart: true,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for p.calls.Load() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("only %d sweeps ran", p.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_RunWithoutStartSweep(t *testing.T) {
	p := &fakePurger{}
	r, _ := NewRunner(p, RunnerConfig{Interval: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := p.calls.Load(); n != 0 {
		t.Errorf("sweeps = %d, want 0 before the first tick", n)
	}
}

func TestRunner_FileStore(t *testing.T) {
	cfg := Default()
	cfg.Store.Dir = t.TempDir()

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fc, err := StoreConfig(cfg, quietLogger(), nil)
	if err != nil {
		t.Fatalf("StoreConfig: %v", err)
	}
	fc.Now = func() time.Time { return now }
	s, err := filestore.New(fc)
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := session.New(fmt.Sprintf("s%d", i))
		rec.SetExpiry(now.Add(-time.Second))
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := s.Save(ctx, session.New("keep")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, _ := NewRunner(s, RunnerConfig{Interval: time.Hour, Logger: quietLogger()})
	res, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Expired != 3 || res.Scanned != 4 {
		t.Errorf("result = %+v, want 3 expired of 4", res)
	}
}
