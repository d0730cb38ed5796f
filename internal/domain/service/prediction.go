package service

import (
	"context"

	"StockPulse/internal/domain/models"
)

// PricePredictor is a uniform wrapper around one point-prediction model.
// Infer returns ErrModelUnavailable (possibly wrapped) when the model cannot
// produce output for this window.
type PricePredictor interface {
	Name() string
	Infer(ctx context.Context, symbol string, bars []models.Bar) (models.ModelOutput, error)
}

// RegimeClassifier labels a historical window with a market regime and a
// data-quality score.
type RegimeClassifier interface {
	Classify(ctx context.Context, bars []models.Bar) (models.MarketContext, error)
}
