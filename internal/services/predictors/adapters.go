package predictors

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockPulse/internal/domain/models"
	domsvc "StockPulse/internal/domain/service"
)

// Known model identifiers.
const (
	ModelTransformer = "transformer"
	ModelLSTM        = "lstm"
)

// minHistory is the shortest window either model service accepts.
const minHistory = 20

type inferRequest struct {
	Symbol  string    `json:"symbol"`
	Closes  []float64 `json:"closes"`
	Volumes []float64 `json:"volumes"`
}

type inferResponse struct {
	Prediction float64 `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// HTTPPredictor adapts one remote point-prediction model to the
// PricePredictor contract. Any transport or validation failure surfaces as
// ErrModelUnavailable so the ensemble can drop this model and continue.
type HTTPPredictor struct {
	name string
	path string
	base *httpBase
}

// NewTransformer creates the transformer model adapter.
func NewTransformer(baseURL string, timeout time.Duration) *HTTPPredictor {
	return &HTTPPredictor{
		name: ModelTransformer,
		path: "/models/transformer/infer",
		base: newHTTPBase(baseURL, timeout),
	}
}

// NewLSTM creates the LSTM model adapter.
func NewLSTM(baseURL string, timeout time.Duration) *HTTPPredictor {
	return &HTTPPredictor{
		name: ModelLSTM,
		path: "/models/lstm/infer",
		base: newHTTPBase(baseURL, timeout),
	}
}

// NewByName creates an adapter for a configured model identifier.
func NewByName(name, baseURL string, timeout time.Duration) (*HTTPPredictor, error) {
	switch name {
	case ModelTransformer:
		return NewTransformer(baseURL, timeout), nil
	case ModelLSTM:
		return NewLSTM(baseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown model %q", name)
	}
}

func (p *HTTPPredictor) Name() string { return p.name }

// Infer calls the remote model service for a point prediction.
func (p *HTTPPredictor) Infer(ctx context.Context, symbol string, bars []models.Bar) (models.ModelOutput, error) {
	var out models.ModelOutput
	if len(bars) < minHistory {
		return out, fmt.Errorf("%s: window %d below minimum %d: %w",
			p.name, len(bars), minHistory, models.ErrModelUnavailable)
	}

	req := inferRequest{
		Symbol:  symbol,
		Closes:  make([]float64, len(bars)),
		Volumes: make([]float64, len(bars)),
	}
	for i, b := range bars {
		req.Closes[i] = b.Close
		req.Volumes[i] = b.Volume
	}

	var resp inferResponse
	if err := p.base.postJSON(ctx, p.path, req, &resp); err != nil {
		return out, fmt.Errorf("%s: %v: %w", p.name, err, models.ErrModelUnavailable)
	}

	if resp.Prediction <= 0 || math.IsNaN(resp.Prediction) || math.IsInf(resp.Prediction, 0) {
		return out, fmt.Errorf("%s: non-finite or non-positive prediction %v: %w",
			p.name, resp.Prediction, models.ErrModelUnavailable)
	}

	out.Model = p.name
	out.Prediction = resp.Prediction
	out.Confidence = clamp01(resp.Confidence)
	return out, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var _ domsvc.PricePredictor = (*HTTPPredictor)(nil)
