package cmap

import "sync"

// Locker serializes work per key using a fixed set of striped mutexes.
//
// Distinct keys may share a stripe; callers must not hold two stripes at
// once or they risk deadlock.
type Locker struct {
	stripes []sync.Mutex
	mask    uint32
}

// NewLocker creates a Locker with the given stripe count (power of 2).
func NewLocker(stripes int) *Locker {
	stripes = normalizeShards(stripes)
	return &Locker{
		stripes: make([]sync.Mutex, stripes),
		mask:    uint32(stripes - 1),
	}
}

// Lock acquires the stripe for key and returns its release function.
func (l *Locker) Lock(key string) func() {
	mu := &l.stripes[shardIndex(key, l.mask)]
	mu.Lock()
	return mu.Unlock
}
