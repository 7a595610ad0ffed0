package state

import "sync"

// IDSet remembers frame ids that were already folded into state.
// The connection manager owns it and clears it whenever the transport drops.
type IDSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewIDSet() *IDSet {
	return &IDSet{ids: make(map[string]struct{})}
}

func (s *IDSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add marks id as processed and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *IDSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ids)
}

func (s *IDSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
