// Package cmap provides sharded concurrency primitives keyed by string.
//
// Map is a sharded map with per-shard RWMutex locking. Locker is a fixed
// set of striped mutexes, used to serialize work on one key (for example
// one conversation) while unrelated keys proceed in parallel.
//
// Both distribute keys across shards with murmur3, so a given key always
// lands on the same shard for the lifetime of the process.
//
// Usage:
//
//	pending := cmap.New[*entry]()
//	pending.Set("chat/42", e)
//
//	locks := cmap.NewLocker(64)
//	unlock := locks.Lock("conversation-7")
//	defer unlock()
package cmap
