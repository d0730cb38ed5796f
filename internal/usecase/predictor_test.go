package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	domsvc "StockPulse/internal/domain/service"
	"StockPulse/internal/services/adaptive"
	"StockPulse/pkg/logger"
)

type stubClassifier struct {
	mc models.MarketContext
}

func (s stubClassifier) Classify(_ context.Context, _ []models.Bar) (models.MarketContext, error) {
	return s.mc, nil
}

type stubAdapter struct {
	name string
	pred float64
	conf float64
	err  error
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Infer(_ context.Context, _ string, _ []models.Bar) (models.ModelOutput, error) {
	if s.err != nil {
		return models.ModelOutput{}, s.err
	}
	return models.ModelOutput{Model: s.name, Prediction: s.pred, Confidence: s.conf}, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordMessageSent(string, string)  {}
func (noopMetrics) RecordError(string)                {}
func (noopMetrics) RecordLastPrice(string, float64)   {}
func (noopMetrics) RecordLatency(string, float64)     {}
func (noopMetrics) RecordDecision(string, string)     {}
func (noopMetrics) RecordModelWeight(string, float64) {}

func predictorLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testBars(n int) []models.BarInput {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.BarInput, n)
	for i := 0; i < n; i++ {
		bars[i] = models.BarInput{
			Timestamp: base.Add(-time.Duration(n-1-i) * 24 * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	return bars
}

func newTestPredictor(t *testing.T, cfg PredictorConfig, mc models.MarketContext, adapters ...stubAdapter) *Predictor {
	t.Helper()
	log := predictorLogger(t)
	names := make([]string, len(adapters))
	preds := make([]domsvc.PricePredictor, len(adapters))
	for i, a := range adapters {
		names[i] = a.name
		preds[i] = a
	}
	tracker := adaptive.New(context.Background(), adaptive.DefaultConfig(), names, nil, log)
	return NewPredictor(cfg, stubClassifier{mc: mc}, preds, tracker, nil, noopMetrics{}, log)
}

func TestPredictInsufficientData(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	_, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(5),
	})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPredictNoBarsNoStore(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	_, err := p.Predict(context.Background(), &models.PredictRequest{Symbol: "AAPL"})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPredictAllAdaptersFail(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", err: models.ErrModelUnavailable},
		stubAdapter{name: "m2", err: models.ErrModelUnavailable},
	)
	_, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if !errors.Is(err, models.ErrNoModelsAvailable) {
		t.Fatalf("expected ErrNoModelsAvailable, got %v", err)
	}
}

func TestPredictToleratesPartialFailure(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 105, conf: 0.8},
		stubAdapter{name: "m2", err: models.ErrModelUnavailable},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Models) != 1 || res.Models[0].Model != "m1" {
		t.Fatalf("expected single surviving model, got %v", res.Models)
	}
}

func TestPredictDecisionAccept(t *testing.T) {
	// Two agreeing models: no disagreement penalty, zero uncertainty.
	// trust = 0.5*0.9 + 0.3*1.0 + 0.2*1.0 = 0.95.
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
		stubAdapter{name: "m2", pred: 100, conf: 0.9},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != models.DecisionAccept {
		t.Fatalf("expected accept at trust %v, got %s", res.TrustScore, res.Decision)
	}
	if math.Abs(res.TrustScore-0.95) > 1e-9 {
		t.Fatalf("expected trust 0.95, got %v", res.TrustScore)
	}
	if res.Prediction != 100 {
		t.Fatalf("expected blended 100, got %v", res.Prediction)
	}
}

func TestPredictDecisionCaution(t *testing.T) {
	// trust = 0.5*0.6 + 0.3*0.6 + 0.2*1.0 = 0.68, between the default
	// minimum confidence and the accept threshold.
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 0.6},
		stubAdapter{name: "m1", pred: 100, conf: 0.6},
		stubAdapter{name: "m2", pred: 100, conf: 0.6},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != models.DecisionCaution {
		t.Fatalf("expected caution at trust %v, got %s", res.TrustScore, res.Decision)
	}
}

func TestPredictDecisionReject(t *testing.T) {
	// trust = 0.5*0.2 + 0.3*0.3 + 0.2*1.0 = 0.39.
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 0.3},
		stubAdapter{name: "m1", pred: 100, conf: 0.2},
		stubAdapter{name: "m2", pred: 100, conf: 0.2},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != models.DecisionReject {
		t.Fatalf("expected reject at trust %v, got %s", res.TrustScore, res.Decision)
	}
}

func TestPredictRequestMinConfidence(t *testing.T) {
	// Same trust 0.68 as the caution case, but the caller raised the bar.
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 0.6},
		stubAdapter{name: "m1", pred: 100, conf: 0.6},
		stubAdapter{name: "m2", pred: 100, conf: 0.6},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol:        "AAPL",
		Bars:          testBars(30),
		MinConfidence: 0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != models.DecisionReject {
		t.Fatalf("expected reject with raised minimum, got %s", res.Decision)
	}
}

func TestPredictVolatilePenalty(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeVolatile, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.8},
		stubAdapter{name: "m2", pred: 100, conf: 0.8},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The volatile wildcard penalty applies to every model.
	if math.Abs(res.ConfidenceDelta-(-0.10)) > 1e-9 {
		t.Fatalf("expected delta -0.10, got %v", res.ConfidenceDelta)
	}
	if math.Abs(res.AdjustedConfidence-0.70) > 1e-9 {
		t.Fatalf("expected adjusted confidence 0.70, got %v", res.AdjustedConfidence)
	}
}

func TestPredictVolatileUsesMedian(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeVolatile, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.8},
		stubAdapter{name: "m2", pred: 102, conf: 0.8},
		stubAdapter{name: "m3", pred: 500, conf: 0.8},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Prediction != 102 {
		t.Fatalf("expected median 102 in volatile regime, got %v", res.Prediction)
	}
}

func TestPredictSingleModelLowDiversity(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 150, conf: 0.8},
	)
	res, err := p.Predict(context.Background(), &models.PredictRequest{
		Symbol: "AAPL",
		Bars:   testBars(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.LowDiversity {
		t.Fatalf("expected low-diversity flag for single model")
	}
	if res.Uncertainty != 0 {
		t.Fatalf("expected zero uncertainty, got %v", res.Uncertainty)
	}
	if res.Note == "" {
		t.Fatalf("expected explanatory note for single-model result")
	}
}

func TestRecordActualUnknownSymbol(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	if err := p.RecordActual(context.Background(), "NVDA", 100, 105); err != nil {
		t.Fatalf("unknown symbol should be a no-op, got %v", err)
	}
}

func TestRecordActualUpdatesTracker(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeBull, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
		stubAdapter{name: "m2", pred: 110, conf: 0.9},
	)
	ctx := context.Background()
	if _, err := p.Predict(ctx, &models.PredictRequest{Symbol: "AAPL", Bars: testBars(30)}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if err := p.RecordActual(ctx, "AAPL", 0, 105); err != nil {
		t.Fatalf("record actual: %v", err)
	}

	for _, perf := range p.tracker.Performance() {
		if perf.Observations != 1 {
			t.Fatalf("expected 1 observation for %s, got %d", perf.Model, perf.Observations)
		}
	}
}

func TestRecordActualInvalid(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeBull, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	ctx := context.Background()
	if _, err := p.Predict(ctx, &models.PredictRequest{Symbol: "AAPL", Bars: testBars(30)}); err != nil {
		t.Fatalf("predict: %v", err)
	}
	err := p.RecordActual(ctx, "AAPL", 100, -5)
	if !errors.Is(err, models.ErrInvalidOutcome) {
		t.Fatalf("expected ErrInvalidOutcome, got %v", err)
	}
}

func TestHistoryRingDropsOldest(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{HistorySize: 2},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	ctx := context.Background()
	for _, sym := range []string{"AAAA", "BBBB", "CCCC"} {
		if _, err := p.Predict(ctx, &models.PredictRequest{Symbol: sym, Bars: testBars(30)}); err != nil {
			t.Fatalf("predict %s: %v", sym, err)
		}
	}

	if got := p.lookup("AAAA"); got != nil {
		t.Fatalf("oldest entry should have been dropped")
	}
	if got := p.lookup("CCCC"); got == nil {
		t.Fatalf("newest entry missing from history")
	}
	if rep := p.Report(); rep.TotalPredictions != 2 {
		t.Fatalf("expected history capped at 2, got %d", rep.TotalPredictions)
	}
}

func TestReportAggregates(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeBull, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
		stubAdapter{name: "m2", pred: 100, conf: 0.9},
	)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := p.Predict(ctx, &models.PredictRequest{Symbol: "AAPL", Bars: testBars(30)}); err != nil {
			t.Fatalf("predict: %v", err)
		}
	}

	rep := p.Report()
	if rep.TotalPredictions != 3 {
		t.Fatalf("expected 3 predictions, got %d", rep.TotalPredictions)
	}
	if rep.Regimes[models.RegimeBull] != 3 {
		t.Fatalf("expected 3 bull entries, got %v", rep.Regimes)
	}
	if rep.AvgTrust <= 0 || rep.AvgConfidence <= 0 {
		t.Fatalf("expected positive averages, got trust=%v conf=%v", rep.AvgTrust, rep.AvgConfidence)
	}
	if len(rep.ModelStats) != 2 {
		t.Fatalf("expected stats for 2 models, got %d", len(rep.ModelStats))
	}

	// A second read over the same history reports the same numbers.
	again := p.Report()
	if again.TotalPredictions != rep.TotalPredictions ||
		again.AvgTrust != rep.AvgTrust ||
		again.AvgConfidence != rep.AvgConfidence {
		t.Fatalf("report not stable across reads")
	}
}

func TestReportEmpty(t *testing.T) {
	p := newTestPredictor(t, PredictorConfig{},
		models.MarketContext{Regime: models.RegimeSideways, DataQuality: 1},
		stubAdapter{name: "m1", pred: 100, conf: 0.9},
	)
	rep := p.Report()
	if rep.TotalPredictions != 0 || rep.AvgTrust != 0 || rep.AvgConfidence != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}
