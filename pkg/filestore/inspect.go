package filestore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// Entry describes one session file as found on disk.
type Entry struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time

	// Record is the decoded record, nil when the file is corrupt.
	Record *session.Record

	// Status is the expiry state at the time of the call.
	Status session.Status
}

// Inspect reads the file for id without evaluating it for Load: expired
// records are returned rather than removed. A missing file yields nil.
// A file that cannot be decoded yields its Entry together with an error
// matching session.ErrCorrupt.
func (s *Store) Inspect(ctx context.Context, id string) (*Entry, error) {
	path, err := s.resolver.Path(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, fi, err := readWithInfo(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, session.ErrIO.Detailf("read %s", filepath.Base(path)).Wrap(err)
	}
	e := &Entry{ID: id, Path: path, Size: fi.Size(), ModTime: fi.ModTime()}

	rec, err := s.decode(id, data)
	if err != nil {
		return e, err
	}
	e.Record = rec
	e.Status = session.Evaluate(rec, s.cfg.Now())
	return e, nil
}

// readWithInfo reads path through a single handle so the content and the
// metadata describe the same file even if a writer renames over path.
func readWithInfo(path string) ([]byte, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, fi, nil
}
