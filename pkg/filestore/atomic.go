package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	tempSuffix = ".tmp"

	// tempOverhead is what a temp name adds to the final file name:
	// leading '.', '.' + 26 char ULID, ".tmp".
	tempOverhead = 1 + 1 + ulid.EncodedSize + len(tempSuffix)
)

// dirSync is replaced in tests.
var dirSync = syncDirectory

// dirSyncError reports a directory sync that failed after the rename. The
// new content is already in place; only its durability across a crash is
// in doubt.
type dirSyncError struct {
	err error
}

func (e *dirSyncError) Error() string { return "sync directory: " + e.err.Error() }
func (e *dirSyncError) Unwrap() error { return e.err }

// tempName returns the temporary sibling name for base:
//
//	.{base}.{ULID}.tmp
//
// The leading dot keeps temp files out of the id namespace and the ULID
// records when the write started, so orphans can be aged out.
func tempName(base string, now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return "." + base + "." + id.String() + tempSuffix, nil
}

// parseTempName splits a temp file name into the final base name and the
// time the write started.
func parseTempName(name string) (base string, started time.Time, ok bool) {
	if !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tempSuffix) {
		return "", time.Time{}, false
	}
	rest := name[1 : len(name)-len(tempSuffix)]
	if len(rest) < ulid.EncodedSize+2 || rest[len(rest)-ulid.EncodedSize-1] != '.' {
		return "", time.Time{}, false
	}
	id, err := ulid.ParseStrict(rest[len(rest)-ulid.EncodedSize:])
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:len(rest)-ulid.EncodedSize-1], ulid.Time(id.Time()), true
}

// writeFileAtomic replaces path with data so that readers observe either
// the previous content or the new content, never a mix.
//
// Data goes to a fresh temp file in the same directory which is synced,
// closed and renamed over path. The directory itself is synced afterwards
// unless syncDir is false; a failure there is returned as *dirSyncError
// because path already holds data. The temp file is removed on any failure
// before the rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode, syncDir bool, now time.Time) (err error) {
	dir, base := filepath.Split(path)
	name, err := tempName(base, now)
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, name)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	renamed = true

	if syncDir {
		if err := dirSync(filepath.Clean(dir)); err != nil {
			return &dirSyncError{err: err}
		}
	}
	return nil
}

// removeFile deletes path. A missing file is not an error.
func removeFile(path string) (removed bool, err error) {
	err = os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
