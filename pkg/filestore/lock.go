package filestore

import (
	"context"
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockShards = 64

// lockTable hands out one exclusive lock per file path. Entries exist only
// while someone holds or waits for them.
type lockTable struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	ch   chan struct{}
	refs int
}

// pathLocks is shared by every Store in the process, so two stores opened
// on the same directory still serialize writers per file.
var pathLocks = newLockTable()

func newLockTable() *lockTable {
	t := &lockTable{}
	for i := range t.shards {
		t.shards[i].locks = make(map[string]*pathLock)
	}
	return t
}

func (t *lockTable) shard(path string) *lockShard {
	return &t.shards[shardIndex(path)]
}

// shardIndex hashes with the streaming murmur3 hasher. murmur3.Sum32 walks
// the input with uintptr arithmetic and fails checkptr under -race.
func shardIndex(path string) uint32 {
	h := murmur3.New32()
	h.Write([]byte(path))
	return h.Sum32() % lockShards
}

// lock acquires the lock for path. It returns ctx.Err() if the context ends
// while waiting; the returned unlock func must be called exactly once
// otherwise.
func (t *lockTable) lock(ctx context.Context, path string) (func(), error) {
	s := t.shard(path)

	s.mu.Lock()
	pl, ok := s.locks[path]
	if !ok {
		pl = &pathLock{ch: make(chan struct{}, 1)}
		s.locks[path] = pl
	}
	pl.refs++
	s.mu.Unlock()

	select {
	case pl.ch <- struct{}{}:
	case <-ctx.Done():
		t.release(s, path, pl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-pl.ch
			t.release(s, path, pl)
		})
	}, nil
}

func (t *lockTable) release(s *lockShard, path string, pl *pathLock) {
	s.mu.Lock()
	pl.refs--
	if pl.refs == 0 {
		delete(s.locks, path)
	}
	s.mu.Unlock()
}

// size returns the number of live entries.
func (t *lockTable) size() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
