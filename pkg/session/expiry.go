package session

import "time"

// Status is the expiry state of a record at a given instant.
type Status uint8

const (
	// StatusLive means the record has an expiry in the future.
	StatusLive Status = iota + 1
	// StatusExpired means the expiry is at or before now.
	StatusExpired
	// StatusNoExpiry means the record never expires.
	StatusNoExpiry
)

func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusExpired:
		return "expired"
	case StatusNoExpiry:
		return "no-expiry"
	default:
		return "unknown"
	}
}

// Live reports whether a record in this state may be served.
// Records without expiry are always live.
func (s Status) Live() bool {
	return s == StatusLive || s == StatusNoExpiry
}

// Evaluate classifies r at now. A nil record is reported as expired.
func Evaluate(r *Record, now time.Time) Status {
	if r == nil {
		return StatusExpired
	}
	if !r.HasExpiry() {
		return StatusNoExpiry
	}
	if !r.ExpiresAt.After(now) {
		return StatusExpired
	}
	return StatusLive
}
