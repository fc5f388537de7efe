package store

import (
	"context"
	"sync"
)

// Memory is a process-local Store used when no remote backend is configured.
// State does not survive restarts and concurrent writers to the same code
// race under last-write-wins semantics. Dev/local use only.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]CodeConfig
}

// NewMemory constructs an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]CodeConfig)}
}

// Get returns a copy of the stored config, or (nil, nil) when absent.
func (m *Memory) Get(_ context.Context, code string) (*CodeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.entries[Key(code)]
	if !ok {
		return nil, nil
	}
	out := cfg
	return &out, nil
}

// Set stores a copy of the config under the code's key.
func (m *Memory) Set(_ context.Context, code string, cfg *CodeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(code)] = *cfg
	return nil
}
