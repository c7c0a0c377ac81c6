package session

import "context"

// Store is the capability a session framework needs from a backend.
//
// Implementations must be safe for concurrent use. A missing or expired
// session is reported by Load as (nil, nil), never as an error.
type Store interface {
	// Create stores a new record. If rec.ID is empty or already taken,
	// the store assigns a fresh id and writes it back into rec.ID.
	Create(ctx context.Context, rec *Record) error

	// Save creates or replaces the record stored under rec.ID.
	Save(ctx context.Context, rec *Record) error

	// Load returns the live record for id, or nil if there is none.
	Load(ctx context.Context, id string) (*Record, error)

	// Delete removes the record for id. Deleting a missing record succeeds.
	Delete(ctx context.Context, id string) error
}

// Purger is implemented by stores that can sweep expired records on demand.
// The store never schedules sweeps itself.
type Purger interface {
	// PurgeExpired removes expired records and returns how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgingStore is a Store that also supports on-demand purging.
type PurgingStore interface {
	Store
	Purger
}
