// Package cmap provides a concurrent map keyed by session id.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex:
//
//   - Sharding: configurable shard count for parallelism
//   - Conditional updates: SetIfAbsent and DeleteIf decide under the shard lock
//   - Iteration: shard by shard, never holding more than one lock
//
// Usage:
//
//	m := cmap.New[entry]()
//	m.Set("abc", e)
//	e, ok := m.Get("abc")
package cmap
