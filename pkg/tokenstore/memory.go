package tokenstore

import "sync"

type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	refresh string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetRefresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryStore) SetRefresh(token string) error {
	s.mu.Lock()
	s.refresh = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetPair(token string, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if refresh != "" {
		s.refresh = refresh
	}
	return nil
}

func (s *MemoryStore) Replace(token string, refresh string) error {
	s.mu.Lock()
	s.token = token
	s.refresh = refresh
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.refresh = ""
	s.mu.Unlock()
	return nil
}
