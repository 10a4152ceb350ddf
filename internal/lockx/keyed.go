// Package lockx provides a table of mutexes addressed by string keys.
package lockx

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes callers that use the same key while letting
// different keys proceed in parallel. Entries are dropped once no caller
// holds or waits on them, so the table only grows with live contention.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the function that releases it.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// PairKey returns the same key for (a, b) and (b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
