package session

import (
	"sort"
	"time"
)

// Record is the unit of storage: the attributes of one session plus an
// optional absolute expiry.
type Record struct {
	// ID is the framework-issued session identifier.
	ID string

	// Data maps attribute names to values.
	Data map[string]Value

	// ExpiresAt is the instant after which the record is gone.
	// The zero time means the record never expires.
	ExpiresAt time.Time
}

// New returns an empty record without expiry.
func New(id string) *Record {
	return &Record{
		ID:   id,
		Data: make(map[string]Value),
	}
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.Data[key]
	return v, ok
}

// Set stores v under key.
func (r *Record) Set(key string, v Value) {
	if r.Data == nil {
		r.Data = make(map[string]Value)
	}
	r.Data[key] = v
}

// Remove deletes key and reports whether it was present.
func (r *Record) Remove(key string) bool {
	if _, ok := r.Data[key]; !ok {
		return false
	}
	delete(r.Data, key)
	return true
}

// Keys returns the attribute names in sorted order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetExpiry sets the absolute expiry. A zero t clears it.
func (r *Record) SetExpiry(t time.Time) {
	r.ExpiresAt = t
}

// SetTTL sets the expiry to now+ttl.
func (r *Record) SetTTL(now time.Time, ttl time.Duration) {
	r.ExpiresAt = now.Add(ttl)
}

// HasExpiry reports whether the record carries an expiry timestamp.
func (r *Record) HasExpiry() bool {
	return !r.ExpiresAt.IsZero()
}

// Clone returns a copy of r that shares no mutable state with it.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := &Record{
		ID:        r.ID,
		Data:      make(map[string]Value, len(r.Data)),
		ExpiresAt: r.ExpiresAt,
	}
	for k, v := range r.Data {
		cp.Data[k] = v
	}
	return cp
}

// Equal reports whether r and o describe the same session state.
// Nil and empty Data compare equal; expiry uses time.Equal.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.ID != o.ID || !r.ExpiresAt.Equal(o.ExpiresAt) {
		return false
	}
	return mapsEqual(r.Data, o.Data)
}

// MaxDepth returns the deepest container nesting among the attributes.
func (r *Record) MaxDepth() int {
	d := 0
	for _, v := range r.Data {
		d = max(d, v.Depth())
	}
	return d
}
