// Package badgerstore is a session.Store on an embedded Badger database.
//
// Records are kept under the key "sess/{id}" in the configured codec.
// Load and PurgeExpired decide expiry against the store clock. With
// Config.TTLGrace set, each entry also carries a Badger TTL of expiry plus
// the grace, so compaction drops sessions nobody purged.
package badgerstore
