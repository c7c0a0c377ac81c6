package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/sessfile-go/pkg/session"
	"github.com/yndnr/sessfile-go/pkg/token"
)

// PurgeResult summarizes one purge sweep.
type PurgeResult struct {
	Scanned   int           // session files inspected
	Expired   int           // expired records removed
	Corrupt   int           // undecodable files removed
	TempFiles int           // stale temp files removed
	Failed    int           // files that could not be read or removed
	Duration  time.Duration // wall time of the sweep
}

// Removed is the number of session files removed.
func (r PurgeResult) Removed() int {
	return r.Expired + r.Corrupt
}

// PurgeExpired removes every expired or corrupt session file and returns how
// many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.Purge(ctx)
	return res.Removed(), err
}

// Purge sweeps the directory once.
//
// Files that do not follow the store layout are left alone. Each session
// file is re-checked under its lock, so a record refreshed by a concurrent
// Save survives. A file that fails to read or remove does not stop the
// sweep; such failures are joined into one session.ErrIO returned along
// with the partial result. Cancellation is checked between files.
func (s *Store) Purge(ctx context.Context) (PurgeResult, error) {
	start := time.Now()
	res, err := s.purge(ctx)
	res.Duration = time.Since(start)
	s.metrics.observe(opPurge, start, resultOf(err))
	s.metrics.purge(reasonExpired, res.Expired)
	s.metrics.purge(reasonCorrupt, res.Corrupt)
	s.metrics.purge(reasonTemp, res.TempFiles)

	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelWarn
	case res.Removed()+res.TempFiles > 0:
		level = slog.LevelInfo
	}
	s.logger.Log(context.WithoutCancel(ctx), level, "purge finished",
		"scanned", res.Scanned,
		"expired", res.Expired,
		"corrupt", res.Corrupt,
		"temp_files", res.TempFiles,
		"failed", res.Failed,
		"duration", res.Duration)
	return res, err
}

func (s *Store) purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult

	dir := s.resolver.Dir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, session.ErrIO.WithDetails("list dir").Wrap(err)
	}

	now := s.cfg.Now()
	var errs []error

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()

		if strings.HasPrefix(name, ".") {
			removed, err := s.purgeTemp(name, time.Now())
			if err != nil {
				res.Failed++
				errs = append(errs, err)
			} else if removed {
				res.TempFiles++
			}
			continue
		}

		id, ok := s.resolver.IDFromName(name)
		if !ok {
			continue
		}

		if l := s.cfg.PurgeLimiter; l != nil {
			if err := l.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return res, ctxErr
				}
				return res, fmt.Errorf("filestore: purge throttle: %w", err)
			}
		}

		res.Scanned++
		reason, err := s.purgeOne(ctx, id, filepath.Join(dir, name), now)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			errs = append(errs, err)
		case reason == reasonExpired:
			res.Expired++
		case reason == reasonCorrupt:
			res.Corrupt++
		}
	}

	if len(errs) > 0 {
		return res, session.ErrIO.Detailf("purge: %d files failed", len(errs)).Wrap(errors.Join(errs...))
	}
	return res, nil
}

// purgeOne removes the file for id if it is expired or corrupt and returns
// the reason, or "" if the file was kept.
func (s *Store) purgeOne(ctx context.Context, id, path string, now time.Time) (string, error) {
	unlock, err := s.locks.lock(ctx, path)
	if err != nil {
		return "", err
	}
	defer unlock()

	reason := ""
	rec, err := s.read(id, path)
	switch {
	case errors.Is(err, session.ErrCorrupt):
		reason = reasonCorrupt
		s.logger.Warn("removing corrupt session file",
			"session", token.Fingerprint(id),
			"error", err)
	case err != nil:
		return "", err
	case rec == nil:
		return "", nil
	case session.Evaluate(rec, now) == session.StatusExpired:
		reason = reasonExpired
	default:
		return "", nil
	}

	removed, err := removeFile(path)
	if err != nil {
		return "", session.ErrIO.Detailf("remove %s", filepath.Base(path)).Wrap(err)
	}
	if !removed {
		return "", nil
	}
	return reason, nil
}

// purgeTemp removes name if it is one of this store's temp files and older
// than TempMaxAge. Temp ages use the wall clock, not Config.Now.
func (s *Store) purgeTemp(name string, now time.Time) (bool, error) {
	base, started, ok := parseTempName(name)
	if !ok {
		return false, nil
	}
	if _, ok := s.resolver.IDFromName(base); !ok {
		return false, nil
	}
	if now.Sub(started) < s.cfg.TempMaxAge {
		return false, nil
	}

	removed, err := removeFile(filepath.Join(s.resolver.Dir(), name))
	if err != nil {
		return false, session.ErrIO.Detailf("remove temp %s", name).Wrap(err)
	}
	if removed {
		s.logger.Info("removed stale temp file", "started", started)
	}
	return removed, nil
}
