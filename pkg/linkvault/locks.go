package linkvault

import (
	"hash/fnv"
	"sync"
)

const defaultLockShards = 256

// handleLocks is a fixed table of mutexes. A handle always maps to the same
// shard, so all mutations of one handle are totally ordered while unrelated
// handles rarely share a shard.
type handleLocks struct {
	shards []sync.Mutex
}

func newHandleLocks(n int) *handleLocks {
	if n <= 0 {
		n = defaultLockShards
	}
	return &handleLocks{shards: make([]sync.Mutex, n)}
}

func (l *handleLocks) shard(handle string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(handle))
	return &l.shards[h.Sum32()%uint32(len(l.shards))]
}

// lock acquires the critical section for handle and returns its release func.
func (l *handleLocks) lock(handle string) func() {
	m := l.shard(handle)
	m.Lock()
	return m.Unlock
}
