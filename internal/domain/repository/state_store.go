package repository

import (
	"context"

	"StockPulse/internal/domain/models"
)

// StateStore persists the adaptive weight tracker's learning state. Load
// returns (nil, nil) when no state has been saved yet. Save must be atomic:
// a crash mid-write never leaves a corrupt record.
type StateStore interface {
	Load(ctx context.Context) (*models.AdaptiveState, error)
	Save(ctx context.Context, state *models.AdaptiveState) error
}
