package queue

import "sync"

// Store maps guild IDs to their queue state.
// An entry exists only while the guild has an active or pending session.
type Store struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewStore() *Store {
	return &Store{states: make(map[string]*State)}
}

func (s *Store) Get(guildID string) (*State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[guildID]
	return st, ok
}

func (s *Store) Set(guildID string, st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[guildID] = st
}

func (s *Store) Delete(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, guildID)
}

// CompareAndDelete removes the entry for guildID only if it is still st.
// A late teardown must not remove a newer session for the same guild.
func (s *Store) CompareAndDelete(guildID string, st *State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[guildID] != st {
		return false
	}
	delete(s.states, guildID)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
