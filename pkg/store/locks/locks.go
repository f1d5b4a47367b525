package locks

import (
	"sync"
)

// Set hands out one mutex per key. Entries are reference counted and
// dropped once nobody holds or waits on them, so ids that are written
// once do not pin memory forever.
type Set struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewSet() *Set {
	return &Set{m: make(map[string]*entry)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (s *Set) Lock(key string) func() {
	s.mu.Lock()
	e, ok := s.m[key]
	if !ok {
		e = &entry{}
		s.m[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.m, key)
		}
		s.mu.Unlock()
	}
}

// Len reports how many keys currently have holders or waiters.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
