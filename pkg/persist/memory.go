package persist

import (
	"encoding/json"
	"sync"
)

// Memory is the in-process fallback when no durable backend is
// configured. State survives the session only.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Set(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.m[key] = data
	s.mu.Unlock()
}

func (s *Memory) Get(key string, dest interface{}) bool {
	s.mu.RLock()
	data, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}
