package repository

import (
	"context"
	"sync"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
)

// MemoryStateStore keeps adaptive state in memory only. Useful for tests and
// ephemeral deployments; state does not survive a restart.
type MemoryStateStore struct {
	mu    sync.Mutex
	state *models.AdaptiveState
}

// NewMemoryStateStore creates an in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Load(_ context.Context) (*models.AdaptiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	return s.state.Clone(), nil
}

func (s *MemoryStateStore) Save(_ context.Context, state *models.AdaptiveState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}

var _ domrepo.StateStore = (*MemoryStateStore)(nil)
