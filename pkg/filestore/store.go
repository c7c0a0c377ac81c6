package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yndnr/sessfile-go/pkg/codec"
	"github.com/yndnr/sessfile-go/pkg/session"
	"github.com/yndnr/sessfile-go/pkg/token"
)

// maxCreateAttempts bounds id regeneration in Create.
const maxCreateAttempts = 8

// Operation names reported in the "op" label.
const (
	opCreate = "create"
	opSave   = "save"
	opLoad   = "load"
	opDelete = "delete"
	opPurge  = "purge"
)

// Store keeps one session record per file.
//
// A Store is safe for concurrent use. Writers to the same file are
// serialized through a process-wide lock table, so several Stores opened
// on one directory behave like one. Readers never take the lock: every
// write replaces the file by rename, so a read sees either the old or the
// new record.
type Store struct {
	cfg      Config
	resolver *Resolver
	codec    codec.Codec
	logger   *slog.Logger
	metrics  *storeMetrics
	locks    *lockTable
}

var _ session.PurgingStore = (*Store)(nil)

// New opens a store, creating cfg.Dir if needed.
func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve dir: %w", err)
	}
	cfg.Dir = dir

	if err := os.MkdirAll(dir, cfg.DirMode); err != nil {
		return nil, session.ErrIO.Detailf("create dir %s", dir).Wrap(err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, session.ErrIO.Detailf("stat dir %s", dir).Wrap(err)
	}
	if !info.IsDir() {
		return nil, session.ErrIO.Detailf("%s is not a directory", dir)
	}

	metrics, err := newStoreMetrics(cfg.Registerer, dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: register metrics: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		resolver: NewResolver(dir, cfg.Prefix, cfg.Suffix),
		codec:    cfg.Codec,
		logger:   cfg.Logger.With("component", "filestore", "dir", dir),
		metrics:  metrics,
		locks:    pathLocks,
	}

	s.logger.Debug("session store opened",
		"prefix", cfg.Prefix,
		"suffix", cfg.Suffix,
		"codec", cfg.Codec.Name())

	return s, nil
}

// Open is New with the default configuration for the given layout.
func Open(dir, prefix, suffix string) (*Store, error) {
	cfg := DefaultConfig(dir)
	cfg.Prefix = prefix
	cfg.Suffix = suffix
	return New(cfg)
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Path returns the file that holds the record for id.
func (s *Store) Path(id string) (string, error) {
	return s.resolver.Path(id)
}

// Save creates or replaces the record stored under rec.ID.
func (s *Store) Save(ctx context.Context, rec *session.Record) error {
	start := time.Now()
	err := s.save(ctx, rec)
	s.metrics.observe(opSave, start, resultOf(err))
	return err
}

func (s *Store) save(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}
	path, err := s.resolver.Path(rec.ID)
	if err != nil {
		return err
	}
	data, err := s.encode(rec)
	if err != nil {
		return err
	}

	unlock, err := s.locks.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(path, data)
}

// Create stores rec under a fresh id. An empty rec.ID is filled from the
// id generator; an id that already has a file is replaced by a generated
// one. The id actually used is written back into rec.ID. After
// maxCreateAttempts collisions Create fails with session.ErrIDConflict and
// rec.ID is left unchanged.
func (s *Store) Create(ctx context.Context, rec *session.Record) error {
	start := time.Now()
	err := s.create(ctx, rec)
	s.metrics.observe(opCreate, start, resultOf(err))
	return err
}

func (s *Store) create(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}

	original := rec.ID
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if attempt > 0 || rec.ID == "" {
			id, err := s.cfg.IDGenerator()
			if err != nil {
				rec.ID = original
				return session.ErrIDConflict.WithDetails("generate id").Wrap(err)
			}
			rec.ID = id
		}

		done, err := s.tryCreate(ctx, rec)
		if err != nil {
			rec.ID = original
			return err
		}
		if done {
			return nil
		}
		s.logger.Debug("session id taken, regenerating",
			"session", token.Fingerprint(rec.ID),
			"attempt", attempt+1)
	}

	rec.ID = original
	return session.ErrIDConflict.Detailf("no free id after %d attempts", maxCreateAttempts)
}

// tryCreate writes rec if its file does not exist yet. It reports false
// when the id is taken.
func (s *Store) tryCreate(ctx context.Context, rec *session.Record) (bool, error) {
	path, err := s.resolver.Path(rec.ID)
	if err != nil {
		return false, err
	}
	data, err := s.encode(rec)
	if err != nil {
		return false, err
	}

	unlock, err := s.locks.lock(ctx, path)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err = os.Lstat(path)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, session.ErrIO.Detailf("stat %s", filepath.Base(path)).Wrap(err)
	}
	return true, s.write(path, data)
}

// Load returns the live record for id, or nil if there is none.
//
// An expired record is deleted on the way out, unless a concurrent Save
// replaced it with a live one in the meantime. Failure to delete is logged
// and does not fail the Load.
func (s *Store) Load(ctx context.Context, id string) (*session.Record, error) {
	start := time.Now()
	rec, result, err := s.load(ctx, id)
	if err != nil {
		result = resultOf(err)
	}
	s.metrics.observe(opLoad, start, result)
	return rec, err
}

func (s *Store) load(ctx context.Context, id string) (*session.Record, string, error) {
	path, err := s.resolver.Path(id)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	rec, err := s.read(id, path)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, resultAbsent, nil
	}
	if session.Evaluate(rec, s.cfg.Now()).Live() {
		return rec, resultOK, nil
	}

	s.expire(ctx, id, path)
	return nil, resultExpired, nil
}

// expire removes the file at path if it still holds an expired record.
func (s *Store) expire(ctx context.Context, id string, path string) {
	unlock, err := s.locks.lock(ctx, path)
	if err != nil {
		return
	}
	defer unlock()

	rec, err := s.read(id, path)
	if err != nil || rec == nil {
		return
	}
	if session.Evaluate(rec, s.cfg.Now()).Live() {
		return
	}

	removed, err := removeFile(path)
	if err != nil {
		s.logger.Warn("failed to remove expired session",
			"session", token.Fingerprint(id),
			"error", err)
		return
	}
	if removed {
		s.metrics.purge(reasonLazy, 1)
	}
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.delete(ctx, id)
	s.metrics.observe(opDelete, start, resultOf(err))
	return err
}

func (s *Store) delete(ctx context.Context, id string) error {
	path, err := s.resolver.Path(id)
	if err != nil {
		return err
	}

	unlock, err := s.locks.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := removeFile(path); err != nil {
		return session.ErrIO.Detailf("remove %s", filepath.Base(path)).Wrap(err)
	}
	return nil
}

// List returns the ids of all session files in the directory, sorted.
// Expiry is not evaluated.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.resolver.Dir())
	if err != nil {
		return nil, session.ErrIO.WithDetails("list dir").Wrap(err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		if id, ok := s.resolver.IDFromName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// read loads and decodes the file at path. A missing file yields nil.
func (s *Store) read(id, path string) (*session.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, session.ErrIO.Detailf("read %s", filepath.Base(path)).Wrap(err)
	}
	return s.decode(id, data)
}

func (s *Store) decode(id string, data []byte) (*session.Record, error) {
	rec, err := s.codec.Decode(data)
	if err != nil {
		if !errors.Is(err, session.ErrCorrupt) {
			err = session.ErrCorrupt.Wrap(err)
		}
		return nil, err
	}
	if rec.ID != id {
		return nil, session.ErrCorrupt.WithDetails("stored id does not match file name")
	}
	return rec, nil
}

func (s *Store) encode(rec *session.Record) ([]byte, error) {
	data, err := s.codec.Encode(rec)
	if err != nil {
		if !errors.Is(err, session.ErrEncode) {
			err = session.ErrEncode.Wrap(err)
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) write(path string, data []byte) error {
	err := writeFileAtomic(path, data, s.cfg.FileMode, !s.cfg.NoSyncDir, time.Now())
	var dsErr *dirSyncError
	if errors.As(err, &dsErr) {
		// The rename already committed the record.
		s.logger.Warn("directory sync failed after write",
			"file", filepath.Base(path),
			"error", dsErr.err)
		return nil
	}
	if err != nil {
		return session.ErrIO.Detailf("write %s", filepath.Base(path)).Wrap(err)
	}
	return nil
}
