package memstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yndnr/sessfile-go/pkg/cmap"
	"github.com/yndnr/sessfile-go/pkg/codec"
	"github.com/yndnr/sessfile-go/pkg/session"
	"github.com/yndnr/sessfile-go/pkg/token"
)

const maxCreateAttempts = 8

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Store provides in-memory session storage.
type Store struct {
	items  *cmap.Map[entry]
	codec  codec.Codec
	now    func() time.Time
	newID  func() (string, error)
	logger *slog.Logger
}

var _ session.PurgingStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithCodec sets the codec records are kept in. Defaults to codec.Binary.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithClock sets the time source for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the id source for Create.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items:  cmap.New[entry](),
		codec:  codec.Binary,
		now:    time.Now,
		newID:  token.Generate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "memstore")
	return s
}

// Create stores rec under a fresh id and writes the id back into rec.ID.
func (s *Store) Create(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}

	original := rec.ID
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			rec.ID = original
			return err
		}
		if attempt > 0 || rec.ID == "" {
			id, err := s.newID()
			if err != nil {
				rec.ID = original
				return session.ErrIDConflict.WithDetails("generate id").Wrap(err)
			}
			rec.ID = id
		}

		e, err := s.encode(rec)
		if err != nil {
			rec.ID = original
			return err
		}
		if s.items.SetIfAbsent(rec.ID, e) {
			return nil
		}
		s.logger.Debug("session id taken, regenerating",
			"session", token.Fingerprint(rec.ID),
			"attempt", attempt+1)
	}

	rec.ID = original
	return session.ErrIDConflict.Detailf("no free id after %d attempts", maxCreateAttempts)
}

// Save creates or replaces the record stored under rec.ID.
func (s *Store) Save(ctx context.Context, rec *session.Record) error {
	if rec == nil {
		return session.ErrInvalidID.WithDetails("nil record")
	}
	e, err := s.encode(rec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.Set(rec.ID, e)
	return nil
}

// Load returns the live record for id, or nil if there is none.
func (s *Store) Load(ctx context.Context, id string) (*session.Record, error) {
	if err := session.CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.items.Get(id)
	if !ok {
		return nil, nil
	}
	now := s.now()
	if e.expired(now) {
		s.items.DeleteIf(id, func(cur entry) bool { return cur.expired(now) })
		return nil, nil
	}

	rec, err := s.codec.Decode(e.data)
	if err != nil {
		if !errors.Is(err, session.ErrCorrupt) {
			err = session.ErrCorrupt.Wrap(err)
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := session.CheckID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.Delete(id)
	return nil
}

// PurgeExpired removes expired records and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()

	var expired []string
	s.items.Range(func(id string, e entry) bool {
		if e.expired(now) {
			expired = append(expired, id)
		}
		return true
	})

	removed := 0
	for _, id := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if s.items.DeleteIf(id, func(cur entry) bool { return cur.expired(now) }) {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("purged expired sessions", "count", removed)
	}
	return removed, nil
}

// Len returns the number of stored records, expired ones included.
func (s *Store) Len() int {
	return s.items.Count()
}

func (s *Store) encode(rec *session.Record) (entry, error) {
	if err := session.CheckID(rec.ID); err != nil {
		return entry{}, err
	}
	data, err := s.codec.Encode(rec)
	if err != nil {
		if !errors.Is(err, session.ErrEncode) {
			err = session.ErrEncode.Wrap(err)
		}
		return entry{}, err
	}
	return entry{data: data, expiresAt: rec.ExpiresAt}, nil
}
