// Package arena is an in-memory table of records keyed by id where every
// record has its own mutex. Read-modify-write through Update is atomic with
// respect to other mutations of the same id; different ids never contend
// beyond the short map lookup.
package arena

import (
	"slices"
	"sync"

	"github.com/dmitrijs2005/gophsocial/internal/common"
)

type slot[T any] struct {
	mu   sync.Mutex
	val  T
	seq  uint64
	gone bool
}

// Arena stores values of T. T is expected to be a pointer type; clone must
// return a deep copy so callers never share memory with the arena.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots map[string]*slot[T]
	seq   uint64
	clone func(T) T
}

func New[T any](clone func(T) T) *Arena[T] {
	return &Arena[T]{slots: make(map[string]*slot[T]), clone: clone}
}

func (a *Arena[T]) lookup(id string) (*slot[T], bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.slots[id]
	return s, ok
}

// Insert adds v under id. It fails with ErrorAlreadyExists if id is taken.
func (a *Arena[T]) Insert(id string, v T) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.slots[id]; ok {
		return common.ErrorAlreadyExists
	}
	a.seq++
	a.slots[id] = &slot[T]{val: a.clone(v), seq: a.seq}
	return nil
}

// Get returns a copy of the value stored under id.
func (a *Arena[T]) Get(id string) (T, error) {
	var zero T
	s, ok := a.lookup(id)
	if !ok {
		return zero, common.ErrorNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return zero, common.ErrorNotFound
	}
	return a.clone(s.val), nil
}

// Update runs fn with the current value while holding the record's lock and
// stores what fn returns. fn receives the arena's own value and must not
// retain it; an error from fn leaves the record unchanged.
func (a *Arena[T]) Update(id string, fn func(cur T) (T, error)) (T, error) {
	var zero T
	s, ok := a.lookup(id)
	if !ok {
		return zero, common.ErrorNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return zero, common.ErrorNotFound
	}
	next, err := fn(s.val)
	if err != nil {
		return zero, err
	}
	s.val = next
	return a.clone(next), nil
}

// Remove deletes id, waiting for any in-flight Update on it to finish.
// onRemove, if set, runs with the final value under the record's lock.
func (a *Arena[T]) Remove(id string, onRemove func(last T)) error {
	a.mu.Lock()
	s, ok := a.slots[id]
	if ok {
		delete(a.slots, id)
	}
	a.mu.Unlock()
	if !ok {
		return common.ErrorNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
	if onRemove != nil {
		onRemove(s.val)
	}
	return nil
}

// All returns copies of every live value in insertion order. The snapshot is
// not atomic across records.
func (a *Arena[T]) All() []T {
	a.mu.RLock()
	slots := make([]*slot[T], 0, len(a.slots))
	for _, s := range a.slots {
		slots = append(slots, s)
	}
	a.mu.RUnlock()

	slices.SortFunc(slots, func(x, y *slot[T]) int {
		switch {
		case x.seq < y.seq:
			return -1
		case x.seq > y.seq:
			return 1
		}
		return 0
	})

	out := make([]T, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if !s.gone {
			out = append(out, a.clone(s.val))
		}
		s.mu.Unlock()
	}
	return out
}

// Len returns the number of live records.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots)
}
