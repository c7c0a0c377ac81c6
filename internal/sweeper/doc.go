// Package sweeper runs periodic purges of a session directory.
//
// The store never schedules work on its own; the sweeper is the external
// scheduler. Config is loaded by the operator tool through confloader, and
// Runner calls filestore.Store.Purge on every tick until its context ends.
package sweeper
