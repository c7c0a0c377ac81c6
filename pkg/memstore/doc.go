// Package memstore is an in-memory session.Store.
//
// It holds encoded records in a sharded map and follows the same contract
// as the file store: the same id rules, the same codec errors, lazy expiry
// on Load and sweeping through PurgeExpired. Nothing survives a restart,
// which makes it the backend of choice for framework tests.
package memstore
