package metric

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.SweepRuns == nil || r.SweepDuration == nil || r.SweepRemoved == nil || r.LastSweep == nil {
		t.Error("sweep metrics not initialized")
	}
}

func TestGlobal(t *testing.T) {
	r1 := Global()
	r2 := Global()
	if r1 != r2 {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	body := scrape(t, Handler())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestRecordSweep(t *testing.T) {
	r := NewRegistry()

	r.RecordSweep("ok", 20*time.Millisecond, 3, 1, 0)
	r.RecordSweep("ok", 10*time.Millisecond, 2, 0, 1)
	r.RecordSweep("error", time.Millisecond, 0, 0, 0)

	if v := testutil.ToFloat64(r.SweepRuns.WithLabelValues("ok")); v != 2 {
		t.Errorf("runs{ok} = %v, want 2", v)
	}
	if v := testutil.ToFloat64(r.SweepRemoved.WithLabelValues("expired")); v != 5 {
		t.Errorf("removed{expired} = %v, want 5", v)
	}

	body := scrape(t, r.Handler())
	for _, want := range []string{
		`sessfile_sweep_runs_total{result="error"} 1`,
		`sessfile_sweep_removed_total{kind="corrupt"} 1`,
		`sessfile_sweep_removed_total{kind="temp"} 1`,
		"sessfile_sweep_duration_seconds_count 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
	if testutil.ToFloat64(r.LastSweep) == 0 {
		t.Error("last sweep timestamp not set")
	}
}

func TestRegisterer_SharesRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewDirCollector(t.TempDir(), "", "")
	if err := r.Registerer().Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	n, err := testutil.GatherAndCount(r.Gatherer(), "sessfile_dir_session_files")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestServe(t *testing.T) {
	r := NewRegistry()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordSweep("ok", time.Millisecond, 1, 0, 0)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if v := testutil.ToFloat64(r.SweepRuns.WithLabelValues("ok")); v != 1000 {
		t.Errorf("runs{ok} = %v, want 1000", v)
	}
}
