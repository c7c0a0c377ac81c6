package badgerstore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sessfile-go/pkg/codec"
	"github.com/yndnr/sessfile-go/pkg/token"
)

// Config configures a Store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// SyncWrites fsyncs the value log on every commit.
	// Default: true
	SyncWrites bool

	// GCInterval is the interval between value log GC runs. Zero disables
	// the background loop.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value log rewrite.
	// Default: 0.5
	GCThreshold float64

	// TTLGrace, when positive, also hands each record to Badger with a TTL
	// of its expiry plus TTLGrace, so compaction drops sessions nobody
	// purged. Badger hides an entry as soon as its TTL passes, so the grace
	// must exceed the purge interval or PurgeExpired undercounts. Zero
	// leaves expiry entirely to Load and PurgeExpired.
	// Default: 0
	TTLGrace time.Duration

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	Codec       codec.Codec
	Logger      *slog.Logger
	Registerer  prometheus.Registerer
	IDGenerator func() (string, error)
	Now         func() time.Time
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		SyncWrites:  true,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   64 << 20,
		Codec:       codec.Binary,
		Logger:      slog.Default(),
		IDGenerator: token.Generate,
		Now:         time.Now,
	}
}

func (c *Config) applyDefaults() {
	if c.GCThreshold <= 0 || c.GCThreshold >= 1 {
		c.GCThreshold = 0.5
	}
	if c.Codec == nil {
		c.Codec = codec.Binary
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IDGenerator == nil {
		c.IDGenerator = token.Generate
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *Config) validate() error {
	if c.Dir == "" && !c.InMemory {
		return fmt.Errorf("badgerstore: dir is required")
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("badgerstore: gc interval must not be negative")
	}
	if c.TTLGrace < 0 {
		return fmt.Errorf("badgerstore: ttl grace must not be negative")
	}
	return nil
}
