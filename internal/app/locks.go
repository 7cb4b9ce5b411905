package app

import "sync"

// lockTable hands out one mutex per key so that operations on different keys
// never block each other. Locks are created on demand and kept for the
// process lifetime; the key space (rooms, answer keys) is small enough that
// reclamation is not worth the bookkeeping.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	t.locks[key] = l
	return l
}
