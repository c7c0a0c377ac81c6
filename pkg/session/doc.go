// Package session defines the session record model shared by all storage
// backends.
//
// A Record is a mapping from attribute name to a tagged Value plus an
// optional absolute expiry. Values are a closed set of variants (null, bool,
// int64, float64, string, bytes, list, map) so codecs can serialize them
// without reflection.
//
// The package also defines:
//
//   - Store and Purger: the capability a session framework consumes
//   - Evaluate: the pure expiry decision (live, expired, no expiry)
//   - Error: coded errors (ErrInvalidID, ErrIO, ErrEncode, ErrCorrupt)
//
// Backends live in sibling packages (filestore, memstore, badgerstore) and
// are checked against the shared contract in package sessiontest.
package session
