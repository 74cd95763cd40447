package storage

import (
	"context"
	"sync"

	"github.com/whisperwalls/censor/models"
)

// MemoryAdapter is an in-memory storage implementation.
type MemoryAdapter struct {
	mu    sync.RWMutex
	prefs map[string]models.Preferences
}

// NewMemoryAdapter creates a memory storage adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{prefs: make(map[string]models.Preferences)}
}

func (m *MemoryAdapter) GetPreferences(_ context.Context, userID string) (models.Preferences, error) {
	m.mu.RLock()
	p, ok := m.prefs[userID]
	m.mu.RUnlock()
	if !ok {
		return models.Preferences{}, models.ErrNotFound
	}
	return copyPreferences(p), nil
}

func (m *MemoryAdapter) SetPreferences(_ context.Context, userID string, prefs models.Preferences) error {
	m.mu.Lock()
	m.prefs[userID] = copyPreferences(prefs)
	m.mu.Unlock()
	return nil
}

func (m *MemoryAdapter) AddTriggerWord(_ context.Context, userID, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		p = models.DefaultPreferences()
	}
	p = copyPreferences(p)
	p.AddTriggerWord(word)
	m.prefs[userID] = p
	return nil
}

func (m *MemoryAdapter) RemoveTriggerWord(_ context.Context, userID, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil
	}
	p.RemoveTriggerWord(word)
	m.prefs[userID] = p
	return nil
}

// Ping always succeeds.
func (m *MemoryAdapter) Ping(context.Context) error { return nil }

func copyPreferences(p models.Preferences) models.Preferences {
	out := p
	out.TriggerWords = append(make([]string, 0, len(p.TriggerWords)), p.TriggerWords...)
	return out
}
