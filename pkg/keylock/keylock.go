// Package keylock provides per-key mutual exclusion. It serializes
// operations addressed to the same entity (confirm, delete, consolidate on
// one person) while leaving operations on different entities concurrent.
package keylock

import "sync"

// KeyLock is a set of named locks. The zero value is not usable; use New.
type KeyLock struct {
	mu   sync.Mutex
	held map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{held: make(map[string]*entry)}
}

// Lock blocks until the lock for key is acquired.
func (k *KeyLock) Lock(key string) {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		k.held[key] = e
	}
	e.refs++
	k.mu.Unlock()

	<-e.ch
}

// TryLock acquires the lock for key without blocking. It returns false if
// the lock is already held.
func (k *KeyLock) TryLock(key string) bool {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		k.held[key] = e
	}

	select {
	case <-e.ch:
		e.refs++
		k.mu.Unlock()
		return true
	default:
		k.mu.Unlock()
		return false
	}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a
// programming error and panics, matching sync.Mutex semantics.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		k.mu.Unlock()
		panic("keylock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.held, key)
	}
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	default:
		panic("keylock: unlock of unheld key " + key)
	}
}
