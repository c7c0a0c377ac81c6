// Package sessiontest is a conformance suite for session.Store backends.
//
// A backend test calls Run with a factory that opens an empty store whose
// expiry decisions use the supplied clock:
//
//	func TestConformance(t *testing.T) {
//		sessiontest.Run(t, func(t *testing.T, now func() time.Time) session.Store {
//			return openStore(t, now)
//		})
//	}
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// Factory opens a new, empty store that reads time from now.
type Factory func(t *testing.T, now func() time.Time) session.Store

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Run runs every conformance check as a subtest.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s session.Store, clock *Clock)
	}{
		{"SaveLoad", testSaveLoad},
		{"LoadMissing", testLoadMissing},
		{"SaveReplaces", testSaveReplaces},
		{"SaveIsolatesCaller", testSaveIsolatesCaller},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ExpiredIsAbsent", testExpiredIsAbsent},
		{"NoExpiryIsLive", testNoExpiryIsLive},
		{"CreateAssignsID", testCreateAssignsID},
		{"CreateAvoidsTakenID", testCreateAvoidsTakenID},
		{"InvalidID", testInvalidID},
		{"PurgeExpired", testPurgeExpired},
		{"Concurrent", testConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock()
			s := factory(t, clock.Now)
			tt.fn(t, s, clock)
		})
	}
}

func sample(id string, clock *Clock) *session.Record {
	rec := session.New(id)
	rec.Set("user", session.String("alice"))
	rec.Set("visits", session.Int(3))
	rec.Set("roles", session.List(session.String("admin"), session.String("ops")))
	rec.Set("prefs", session.Map(map[string]session.Value{"dark": session.Bool(true)}))
	rec.SetTTL(clock.Now(), time.Hour)
	return rec
}

func testSaveLoad(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	rec := sample("abc", clock)

	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(rec) {
		t.Fatalf("Load() = %#v, want %#v", got, rec)
	}
}

func testLoadMissing(t *testing.T, s session.Store, _ *Clock) {
	got, err := s.Load(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", got, err)
	}
}

func testSaveReplaces(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	rec := sample("abc", clock)
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec.Set("visits", session.Int(4))
	rec.Remove("roles")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(rec) {
		t.Fatalf("Load() = %#v, want %#v", got, rec)
	}
}

func testSaveIsolatesCaller(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	rec := sample("abc", clock)
	want := rec.Clone()

	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec.Set("user", session.String("mallory"))

	got, err := s.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(want) {
		t.Fatal("mutating the saved record changed the stored one")
	}

	got.Set("user", session.String("eve"))
	again, err := s.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !again.Equal(want) {
		t.Fatal("mutating a loaded record changed the stored one")
	}
}

func testDeleteIdempotent(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	if err := s.Save(ctx, sample("abc", clock)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Delete(ctx, "abc"); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	if got, err := s.Load(ctx, "abc"); err != nil || got != nil {
		t.Fatalf("Load after Delete = %v, %v", got, err)
	}
}

func testExpiredIsAbsent(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	rec := session.New("abc")
	rec.SetTTL(clock.Now(), time.Minute)
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	clock.Advance(time.Minute)
	if got, err := s.Load(ctx, "abc"); err != nil || got != nil {
		t.Fatalf("Load(expired) = %v, %v; want nil, nil", got, err)
	}
	if got, err := s.Load(ctx, "abc"); err != nil || got != nil {
		t.Fatalf("second Load(expired) = %v, %v; want nil, nil", got, err)
	}
}

func testNoExpiryIsLive(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	if err := s.Save(ctx, session.New("forever")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clock.Advance(50 * 365 * 24 * time.Hour)
	if got, err := s.Load(ctx, "forever"); err != nil || got == nil {
		t.Fatalf("Load(no expiry) = %v, %v; want record", got, err)
	}
}

func testCreateAssignsID(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	rec := sample("", clock)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Create did not assign an id")
	}
	got, err := s.Load(ctx, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("Load(created) = %v, %v", got, err)
	}
	if !got.Equal(rec) {
		t.Fatalf("Load() = %#v, want %#v", got, rec)
	}
}

func testCreateAvoidsTakenID(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	first := sample("taken", clock)
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := session.New("taken")
	second.Set("other", session.Bool(true))
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.ID == "taken" {
		t.Fatal("Create reused a taken id")
	}

	got, err := s.Load(ctx, "taken")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(first) {
		t.Fatal("Create overwrote an existing record")
	}
}

func testInvalidID(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	for _, id := range []string{"../../etc/passwd", "a/b", ".."} {
		if err := s.Save(ctx, sample(id, clock)); !errors.Is(err, session.ErrInvalidID) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidID", id, err)
		}
		if _, err := s.Load(ctx, id); !errors.Is(err, session.ErrInvalidID) {
			t.Errorf("Load(%q) err = %v, want ErrInvalidID", id, err)
		}
		if err := s.Delete(ctx, id); !errors.Is(err, session.ErrInvalidID) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidID", id, err)
		}
	}
	if err := s.Save(ctx, nil); !errors.Is(err, session.ErrInvalidID) {
		t.Errorf("Save(nil) err = %v, want ErrInvalidID", err)
	}
	if err := s.Create(ctx, nil); !errors.Is(err, session.ErrInvalidID) {
		t.Errorf("Create(nil) err = %v, want ErrInvalidID", err)
	}
}

func testPurgeExpired(t *testing.T, s session.Store, clock *Clock) {
	p, ok := s.(session.Purger)
	if !ok {
		t.Skip("store does not implement session.Purger")
	}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		rec := session.New(fmt.Sprintf("short%d", i))
		rec.SetTTL(clock.Now(), time.Minute)
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := s.Save(ctx, sample("long", clock)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	clock.Advance(2 * time.Minute)
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 4 {
		t.Fatalf("PurgeExpired() = %d, want 4", n)
	}
	if got, err := s.Load(ctx, "long"); err != nil || got == nil {
		t.Fatalf("live record purged: %v, %v", got, err)
	}
}

func testConcurrent(t *testing.T, s session.Store, clock *Clock) {
	ctx := context.Background()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("w%d", w%4)
			for i := 0; i < 20; i++ {
				rec := sample(id, clock)
				rec.Set("n", session.Int(int64(i)))
				if err := s.Save(ctx, rec); err != nil {
					t.Errorf("Save: %v", err)
					return
				}
				if _, err := s.Load(ctx, id); err != nil {
					t.Errorf("Load: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 4; w++ {
		got, err := s.Load(ctx, fmt.Sprintf("w%d", w))
		if err != nil || got == nil {
			t.Fatalf("Load(w%d) = %v, %v", w, got, err)
		}
	}
}
