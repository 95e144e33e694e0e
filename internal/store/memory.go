package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthware/concierge/pkg/models"
)

// MemoryStore is the zero-config in-memory Store used for local runs and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	interactions []models.Interaction
	preferences  map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{preferences: make(map[string]string)}
}

func (s *MemoryStore) RecordInteraction(ctx context.Context, in *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	s.interactions = append(s.interactions, *in)
	return nil
}

func (s *MemoryStore) ListInteractions(ctx context.Context, limit int) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Interaction, 0, limit)
	for i := len(s.interactions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.interactions[i])
	}
	return out, nil
}

func (s *MemoryStore) SetPreference(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[key] = value
	return nil
}

func (s *MemoryStore) GetPreference(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.preferences[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
