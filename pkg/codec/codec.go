// Package codec serializes session records to bytes and back.
//
// Two formats are provided:
//
//   - JSON: human-readable, one tagged object per attribute value
//   - Binary: compact protobuf wire encoding with magic, version and CRC32
//
// Both are deterministic (attribute keys are written in sorted order) and
// round-trip exactly: int64 and float64 bit patterns, byte strings and the
// expiry instant down to the nanosecond. Decoders never panic; any malformed
// input yields an error matching session.ErrCorrupt. Records that cannot be
// represented yield session.ErrEncode.
package codec

import (
	"fmt"
	"strings"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// MaxDepth bounds container nesting in encoded records.
const MaxDepth = 64

// Codec converts records to and from their stored form.
type Codec interface {
	// Name identifies the format in configuration ("json", "binary").
	Name() string

	// Encode serializes rec. Errors match session.ErrEncode.
	Encode(rec *session.Record) ([]byte, error)

	// Decode parses data. Errors match session.ErrCorrupt.
	Decode(data []byte) (*session.Record, error)
}

var (
	// JSON is the default, human-readable codec.
	JSON Codec = jsonCodec{}

	// Binary is the compact protobuf-wire codec.
	Binary Codec = binaryCodec{}
)

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "binary", "bin", "protowire":
		return Binary, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

func checkEncodable(rec *session.Record) error {
	if rec == nil {
		return session.ErrEncode.WithDetails("nil record")
	}
	if d := rec.MaxDepth(); d > MaxDepth {
		return session.ErrEncode.Detailf("nesting depth %d exceeds %d", d, MaxDepth)
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return session.ErrCorrupt.Detailf(format, args...)
}
