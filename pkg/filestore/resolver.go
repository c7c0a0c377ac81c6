package filestore

import (
	"path/filepath"
	"strings"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// maxNameLen is the common file name limit (ext4, xfs, apfs, ntfs).
const maxNameLen = 255

// Resolver maps session ids to file paths inside one directory.
// It is a pure function of its configuration.
type Resolver struct {
	dir    string
	prefix string
	suffix string
}

// NewResolver returns a resolver for {dir}/{prefix}{id}{suffix}.
// dir should already be absolute and clean.
func NewResolver(dir, prefix, suffix string) *Resolver {
	return &Resolver{
		dir:    filepath.Clean(dir),
		prefix: prefix,
		suffix: suffix,
	}
}

// Dir returns the directory all paths resolve into.
func (r *Resolver) Dir() string { return r.dir }

// Path returns the file path for id, or an error matching
// session.ErrInvalidID if id is not a safe file name component.
//
// Ids are restricted to [A-Za-z0-9_-]. Separators, dots, NUL and anything
// else that could escape the directory are rejected, never escaped.
func (r *Resolver) Path(id string) (string, error) {
	if err := r.check(id); err != nil {
		return "", err
	}
	p := filepath.Join(r.dir, r.name(id))
	if filepath.Dir(p) != r.dir {
		return "", session.ErrInvalidID.Detailf("id resolves outside %s", r.dir)
	}
	return p, nil
}

// IDFromName is the inverse of Path for a bare file name. It reports false
// for names that do not follow the layout or would not be accepted by Path.
func (r *Resolver) IDFromName(name string) (string, bool) {
	if len(name) <= len(r.prefix)+len(r.suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, r.prefix) || !strings.HasSuffix(name, r.suffix) {
		return "", false
	}
	id := name[len(r.prefix) : len(name)-len(r.suffix)]
	if r.check(id) != nil {
		return "", false
	}
	return id, true
}

func (r *Resolver) name(id string) string {
	return r.prefix + id + r.suffix
}

func (r *Resolver) check(id string) error {
	if err := session.CheckID(id); err != nil {
		return err
	}
	if n := len(r.name(id)) + tempOverhead; n > maxNameLen {
		return session.ErrInvalidID.Detailf("id too long: file name would be %d bytes", n)
	}
	return nil
}
