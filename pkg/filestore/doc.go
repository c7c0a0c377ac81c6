// Package filestore stores session records as individual files.
//
// Layout:
//
//	{dir}/{prefix}{id}{suffix}        one record per file
//	{dir}/.{prefix}{id}{suffix}.{ULID}.tmp   in-flight write
//
// Every write goes to a temp file in the same directory which is synced and
// renamed over the target, so a reader never sees a partial record. Ids are
// restricted to [A-Za-z0-9_-]; anything else is rejected before the
// filesystem is touched.
//
// Expired records are removed lazily by Load and in bulk by Purge. The
// store never schedules purges on its own.
//
// Writers in one process are serialized per file, across every Store
// opened on the same directory. Separate processes are coordinated only by
// the atomic rename: the last writer wins and there is no file locking.
package filestore
