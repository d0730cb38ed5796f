package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/cache"
)

// BarsUseCase serves historical bars, with an optional read-through cache.
type BarsUseCase struct {
	store    domrepo.BarStore
	cache    cache.BytesCache
	cacheTTL time.Duration
}

func NewBarsUseCase(store domrepo.BarStore, c cache.BytesCache, ttl time.Duration) *BarsUseCase {
	return &BarsUseCase{store: store, cache: c, cacheTTL: ttl}
}

type GetBarsResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	Count     int          `json:"count"`
	Bars      []models.Bar `json:"bars"`
}

// GetLatest returns the most recent bars for a symbol, oldest first.
func (uc *BarsUseCase) GetLatest(ctx context.Context, q *models.BarsQuery) (*GetBarsResult, error) {
	tf := domrepo.NormalizeTimeframe(q.Timeframe)
	key := fmt.Sprintf("bars:%s:%s:%d", q.Symbol, tf, q.Limit)

	if uc.cache != nil {
		if b, ok, err := uc.cache.GetBytes(key); err == nil && ok {
			var res GetBarsResult
			if err := json.Unmarshal(b, &res); err == nil {
				return &res, nil
			}
		}
	}

	bars, err := uc.store.GetLatestNBars(ctx, q.Symbol, q.Limit, tf)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}

	res := &GetBarsResult{
		Symbol:    q.Symbol,
		Timeframe: string(tf),
		Count:     len(bars),
		Bars:      bars,
	}

	if uc.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			_ = uc.cache.SetBytes(key, b, uc.cacheTTL)
		}
	}
	return res, nil
}

// GetRange returns bars between from and to, oldest first. Range reads skip
// the cache: arbitrary windows would pollute it.
func (uc *BarsUseCase) GetRange(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) (*GetBarsResult, error) {
	bars, err := uc.store.GetBars(ctx, symbol, from, to, tf)
	if err != nil {
		return nil, fmt.Errorf("get bars range: %w", err)
	}
	return &GetBarsResult{
		Symbol:    symbol,
		Timeframe: string(tf),
		Count:     len(bars),
		Bars:      bars,
	}, nil
}
