package filestore

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/yndnr/sessfile-go/pkg/codec"
	"github.com/yndnr/sessfile-go/pkg/token"
)

// Default configuration values.
const (
	DefaultFileMode   os.FileMode = 0600
	DefaultDirMode    os.FileMode = 0750
	DefaultTempMaxAge             = time.Hour

	// DefaultIDBytes is the entropy of generated ids (22 base64url chars).
	DefaultIDBytes = 16
)

// Config configures a Store. Dir, Prefix and Suffix define the file layout
// {Dir}/{Prefix}{id}{Suffix}; everything else is optional.
type Config struct {
	Dir    string
	Prefix string
	Suffix string

	// Codec serializes records. Defaults to codec.JSON.
	Codec codec.Codec

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the store metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// PurgeLimiter throttles how many files a purge sweep inspects per
	// second. Nil means unthrottled.
	PurgeLimiter *rate.Limiter

	// TempMaxAge is the age after which an orphaned temporary file left by
	// a crashed writer is removed during purge.
	TempMaxAge time.Duration

	FileMode os.FileMode
	DirMode  os.FileMode

	// NoSyncDir skips the directory fsync after each rename. Renames are
	// still atomic but may not survive power loss.
	NoSyncDir bool

	// IDGenerator produces ids for Create. Defaults to 16 random bytes,
	// base64url encoded.
	IDGenerator func() (string, error)

	// Now returns the current time for expiry decisions. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a config for dir with blank prefix and suffix.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Codec:       codec.JSON,
		Logger:      slog.Default(),
		TempMaxAge:  DefaultTempMaxAge,
		FileMode:    DefaultFileMode,
		DirMode:     DefaultDirMode,
		IDGenerator: defaultIDGenerator,
		Now:         time.Now,
	}
}

// InDir is DefaultConfig: every file in dir is a session file.
func InDir(dir string) Config {
	return DefaultConfig(dir)
}

func (c *Config) applyDefaults() {
	if c.Codec == nil {
		c.Codec = codec.JSON
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TempMaxAge <= 0 {
		c.TempMaxAge = DefaultTempMaxAge
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}
	if c.IDGenerator == nil {
		c.IDGenerator = defaultIDGenerator
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *Config) validate() error {
	if c.Dir == "" {
		return fmt.Errorf("filestore: dir is required")
	}
	if err := validateAffix("prefix", c.Prefix); err != nil {
		return err
	}
	if err := validateAffix("suffix", c.Suffix); err != nil {
		return err
	}
	if strings.HasPrefix(c.Prefix, ".") {
		return fmt.Errorf("filestore: prefix must not start with '.'")
	}
	return nil
}

func validateAffix(name, v string) error {
	if strings.ContainsAny(v, "/\\\x00") || strings.ContainsRune(v, os.PathSeparator) {
		return fmt.Errorf("filestore: %s %q contains a path separator or NUL", name, v)
	}
	if v == "." || v == ".." {
		return fmt.Errorf("filestore: %s %q is not a valid file name part", name, v)
	}
	return nil
}

func defaultIDGenerator() (string, error) {
	return token.GenerateWithLength(DefaultIDBytes)
}
