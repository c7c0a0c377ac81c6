package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sessfile-go/pkg/session"
	"github.com/yndnr/sessfile-go/pkg/token"
)

const (
	keyPrefix         = "sess/"
	maxCreateAttempts = 8
)

// Store is a session.Store backed by Badger.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ session.PurgingStore = (*Store)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	logger := cfg.Logger.With("component", "badgerstore")

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, session.ErrIO.WithDetails("open badger").Wrap(err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.Registerer != nil {
		if err := s.registerMetrics(cfg.Registerer); err != nil {
			db.Close()
			return nil, fmt.Errorf("badgerstore: register metrics: %w", err)
		}
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop(cfg.GCInterval)
	} else {
		close(s.doneCh)
	}

	logger.Info("badger session store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"codec", cfg.Codec.Name())

	return s, nil
}

// Create stores rec under a fresh id and writes the id back into rec.ID.
func (s *Store) Create(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}

	original := rec.ID
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			rec.ID = original
			return err
		}
		if attempt > 0 || rec.ID == "" {
			id, err := s.cfg.IDGenerator()
			if err != nil {
				rec.ID = original
				return session.ErrIDConflict.WithDetails("generate id").Wrap(err)
			}
			rec.ID = id
		}

		entry, err := s.entry(rec)
		if err != nil {
			rec.ID = original
			return err
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(entry.Key)
			if err == nil {
				return errTaken
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.SetEntry(entry)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errTaken), errors.Is(err, badger.ErrConflict):
			s.logger.Debug("session id taken, regenerating",
				"session", token.Fingerprint(rec.ID),
				"attempt", attempt+1)
		default:
			rec.ID = original
			return session.ErrIO.WithDetails("create").Wrap(err)
		}
	}

	rec.ID = original
	return session.ErrIDConflict.Detailf("no free id after %d attempts", maxCreateAttempts)
}

var errTaken = errors.New("id taken")

// Save creates or replaces the record stored under rec.ID.
func (s *Store) Save(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}
	entry, err := s.entry(rec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return session.ErrIO.WithDetails("save").Wrap(err)
	}
	return nil
}

// Load returns the live record for id, or nil if there is none.
func (s *Store) Load(ctx context.Context, id string) (*session.Record, error) {
	if err := session.CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *session.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.get(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if session.Evaluate(rec, s.cfg.Now()).Live() {
		return rec, nil
	}

	if _, err := s.removeIfStale(id, false); err != nil {
		s.logger.Warn("failed to remove expired session",
			"session", token.Fingerprint(id),
			"error", err)
	}
	return nil, nil
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := session.CheckID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return session.ErrIO.WithDetails("delete").Wrap(err)
	}
	return nil
}

// PurgeExpired removes expired and undecodable records and returns how
// many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.cfg.Now()

	var candidates []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(keyPrefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := s.cfg.Codec.Decode(data)
			if err != nil || session.Evaluate(rec, now) == session.StatusExpired {
				candidates = append(candidates, id)
			}
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, session.ErrIO.WithDetails("purge scan").Wrap(err)
	}

	removed := 0
	var errs []error
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		ok, err := s.removeIfStale(id, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("purged expired sessions", "count", removed)
	}
	if len(errs) > 0 {
		return removed, session.ErrIO.Detailf("purge: %d records failed", len(errs)).Wrap(errors.Join(errs...))
	}
	return removed, nil
}

// removeIfStale deletes id if it is still expired, or undecodable when
// corrupt is set, at commit time.
func (s *Store) removeIfStale(id string, corrupt bool) (bool, error) {
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.get(txn, id)
		switch {
		case errors.Is(err, session.ErrCorrupt):
			if !corrupt {
				return nil
			}
		case err != nil:
			return err
		case rec == nil:
			return nil
		case session.Evaluate(rec, s.cfg.Now()) != session.StatusExpired:
			return nil
		}
		removed = true
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	return removed, err
}

// Close stops the GC loop and closes the database. Later and concurrent
// calls wait for the first one and return its result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		if err := s.db.Close(); err != nil {
			s.closeErr = fmt.Errorf("badgerstore: close db: %w", err)
			return
		}
		s.logger.Info("badger session store closed")
	})
	return s.closeErr
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (s *Store) GC() (int, error) {
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				return runs, nil
			}
			return runs, fmt.Errorf("badgerstore: gc: %w", err)
		}
		runs++
	}
}

func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			runs, err := s.GC()
			if err != nil {
				s.logger.Error("value log gc failed", "error", err)
				continue
			}
			s.logger.Debug("value log gc completed", "rewrites", runs, "elapsed", time.Since(start))
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) registerMetrics(reg prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			return float64(pick(s.db.Size()))
		}
	}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sessfile",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sessfile",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, size(func(_, vlog int64) int64 { return vlog })),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) get(txn *badger.Txn, id string) (*session.Record, error) {
	item, err := txn.Get(key(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, session.ErrIO.WithDetails("get").Wrap(err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, session.ErrIO.WithDetails("read value").Wrap(err)
	}

	rec, err := s.cfg.Codec.Decode(data)
	if err != nil {
		if !errors.Is(err, session.ErrCorrupt) {
			err = session.ErrCorrupt.Wrap(err)
		}
		return nil, err
	}
	if rec.ID != id {
		return nil, session.ErrCorrupt.WithDetails("stored id does not match key")
	}
	return rec, nil
}

func (s *Store) entry(rec *session.Record) (*badger.Entry, error) {
	if err := session.CheckID(rec.ID); err != nil {
		return nil, err
	}
	data, err := s.cfg.Codec.Encode(rec)
	if err != nil {
		if !errors.Is(err, session.ErrEncode) {
			err = session.ErrEncode.Wrap(err)
		}
		return nil, err
	}

	e := badger.NewEntry(key(rec.ID), data)
	if rec.HasExpiry() && s.cfg.TTLGrace > 0 {
		// Badger TTLs have second resolution. Round up so the entry
		// outlives the record expiry plus grace.
		if sec := rec.ExpiresAt.Add(s.cfg.TTLGrace).Unix() + 1; sec > 0 {
			e.ExpiresAt = uint64(sec)
		} else {
			e.ExpiresAt = 1
		}
	}
	return e, nil
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}
