// Package token generates session identifiers and log-safe fingerprints.
//
// Identifiers:
//
//   - crypto/rand bytes, Base64 RawURL encoded
//   - 16 bytes (22 characters) by default, within [A-Za-z0-9_-]
//
// Fingerprints:
//
//   - first 12 hex characters of the SHA-256 of an identifier
//   - stable across processes, so log lines for one session correlate
//     without exposing the identifier itself
package token
