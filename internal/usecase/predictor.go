package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	domsvc "StockPulse/internal/domain/service"
	svcmetrics "StockPulse/internal/service/metrics"
	"StockPulse/internal/services/adaptive"
	"StockPulse/internal/services/ensemble"
	applogger "StockPulse/pkg/logger"
)

// Trust score coefficients: confidence, data quality, normalized uncertainty.
const (
	trustConfidenceWeight  = 0.5
	trustQualityWeight     = 0.3
	trustUncertaintyWeight = 0.2

	acceptThreshold = 0.75
)

// PredictorConfig tunes the coordinator.
type PredictorConfig struct {
	MinConfidence float64       // default caution/reject boundary
	MinBars       int           // shortest acceptable window
	WindowBars    int           // bars fetched from storage when none supplied
	HistorySize   int           // bounded in-memory result history
	AdapterBudget time.Duration // per-call timeout across all adapters
}

// Predictor orchestrates one prediction call: classify, query weights, fan
// out to model adapters, combine, score trust, decide, and record. It is the
// only entry point the web layer uses.
type Predictor struct {
	cfg        PredictorConfig
	classifier domsvc.RegimeClassifier
	adapters   []domsvc.PricePredictor
	tracker    *adaptive.Tracker
	bars       domrepo.BarStore
	metrics    domrepo.Metrics
	log        *applogger.Logger

	histMu  sync.Mutex
	history []*models.PredictionResult
	histPos int
	full    bool
}

// NewPredictor creates a coordinator.
func NewPredictor(
	cfg PredictorConfig,
	classifier domsvc.RegimeClassifier,
	adapters []domsvc.PricePredictor,
	tracker *adaptive.Tracker,
	bars domrepo.BarStore,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *Predictor {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = 20
	}
	if cfg.WindowBars <= 0 {
		cfg.WindowBars = 250
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1000
	}
	if cfg.AdapterBudget <= 0 {
		cfg.AdapterBudget = 5 * time.Second
	}
	return &Predictor{
		cfg:        cfg,
		classifier: classifier,
		adapters:   adapters,
		tracker:    tracker,
		bars:       bars,
		metrics:    metrics,
		log:        log,
		history:    make([]*models.PredictionResult, cfg.HistorySize),
	}
}

// Predict produces a blended prediction for the request. Bars come from the
// request when supplied, otherwise from storage.
func (p *Predictor) Predict(ctx context.Context, req *models.PredictRequest) (*models.PredictionResult, error) {
	start := time.Now()

	bars, err := p.resolveBars(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(bars) < p.cfg.MinBars {
		return nil, fmt.Errorf("window %d below minimum %d: %w",
			len(bars), p.cfg.MinBars, models.ErrInsufficientData)
	}

	mc, err := p.classifier.Classify(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	weights := p.tracker.Weights(mc.Regime)
	outputs := p.invokeAdapters(ctx, req.Symbol, bars)
	if len(outputs) == 0 {
		p.metrics.RecordError("no_models")
		return nil, models.ErrNoModelsAvailable
	}

	combiner := ensemble.New(ensemble.ModeWeighted)
	if mc.Regime == models.RegimeVolatile && len(outputs) > 2 {
		// median is robust to a single outlier model when markets are noisy
		combiner = ensemble.New(ensemble.ModeMedian)
	}
	ens, err := combiner.Combine(outputs, weights)
	if err != nil {
		return nil, err
	}

	// The regime boost folds into confidence before the trust formula.
	delta := p.regimeDelta(mc.Regime, outputs)
	adjConf := clamp01(ens.Confidence + delta)

	trust := trustConfidenceWeight*adjConf +
		trustQualityWeight*mc.DataQuality +
		trustUncertaintyWeight*(1/(1+ens.Uncertainty))

	minConf := req.MinConfidence
	if minConf <= 0 {
		minConf = p.cfg.MinConfidence
	}
	decision := decide(trust, minConf)

	res := &models.PredictionResult{
		Symbol:             req.Symbol,
		Prediction:         ens.Blended,
		BaseConfidence:     ens.Confidence,
		AdjustedConfidence: adjConf,
		ConfidenceDelta:    adjConf - ens.Confidence,
		IntervalLow:        ens.IntervalLow,
		IntervalHigh:       ens.IntervalHigh,
		Uncertainty:        ens.Uncertainty,
		DataQuality:        mc.DataQuality,
		Regime:             mc.Regime,
		TrustScore:         trust,
		Decision:           decision,
		LowDiversity:       ens.LowDiversity,
		Models:             outputs,
		Weights:            weights,
		Timestamp:          time.Now().UTC(),
	}
	if ens.LowDiversity {
		res.Note = "single-model ensemble: uncertainty estimate is unreliable"
	}

	p.record(res)

	p.metrics.RecordDecision(string(decision), string(mc.Regime))
	for model, w := range weights {
		p.metrics.RecordModelWeight(model, w)
	}
	p.metrics.RecordLatency("predict", time.Since(start).Seconds())

	p.log.Info("prediction",
		applogger.String("symbol", req.Symbol),
		applogger.String("regime", string(mc.Regime)),
		applogger.String("decision", string(decision)),
		applogger.Float64("trust", trust),
		applogger.Float64("prediction", ens.Blended),
		applogger.Int("models", len(outputs)))
	return res, nil
}

func (p *Predictor) resolveBars(ctx context.Context, req *models.PredictRequest) ([]models.Bar, error) {
	if len(req.Bars) > 0 {
		bars := make([]models.Bar, len(req.Bars))
		for i, b := range req.Bars {
			bars[i] = models.Bar{
				Symbol:    req.Symbol,
				Timestamp: b.Timestamp,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
		}
		return bars, nil
	}
	if p.bars == nil {
		return nil, fmt.Errorf("no bars supplied and no store configured: %w", models.ErrInsufficientData)
	}
	bars, err := p.bars.GetLatestNBars(ctx, req.Symbol, p.cfg.WindowBars, domrepo.DefaultTimeframe())
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	return bars, nil
}

// invokeAdapters fans out to every configured adapter concurrently under one
// shared budget. Individual failures are tolerated and logged.
func (p *Predictor) invokeAdapters(ctx context.Context, symbol string, bars []models.Bar) []models.ModelOutput {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AdapterBudget)
	defer cancel()

	type inferResult struct {
		name string
		out  models.ModelOutput
		err  error
	}

	results := make(chan inferResult, len(p.adapters))
	for _, a := range p.adapters {
		go func(a domsvc.PricePredictor) {
			out, err := a.Infer(ctx, symbol, bars)
			results <- inferResult{name: a.Name(), out: out, err: err}
		}(a)
	}

	outputs := make([]models.ModelOutput, 0, len(p.adapters))
	for range p.adapters {
		r := <-results
		if r.err != nil {
			p.log.Warn("model adapter failed",
				applogger.String("model", r.name),
				applogger.Error(r.err))
			svcmetrics.AdapterFailures.WithLabelValues(r.name).Inc()
			p.metrics.RecordError("adapter")
			continue
		}
		outputs = append(outputs, r.out)
	}
	return outputs
}

// regimeDelta averages the per-model regime boosts over contributing models.
func (p *Predictor) regimeDelta(regime models.Regime, outputs []models.ModelOutput) float64 {
	if len(outputs) == 0 {
		return 0
	}
	var sum float64
	for _, o := range outputs {
		sum += p.tracker.ConfidenceBoost(regime, o.Model)
	}
	return sum / float64(len(outputs))
}

func decide(trust, minConf float64) models.Decision {
	switch {
	case trust >= acceptThreshold:
		return models.DecisionAccept
	case trust >= minConf:
		return models.DecisionCaution
	default:
		return models.DecisionReject
	}
}

// record appends to the bounded drop-oldest history ring.
func (p *Predictor) record(res *models.PredictionResult) {
	p.histMu.Lock()
	defer p.histMu.Unlock()
	p.history[p.histPos] = res
	p.histPos++
	if p.histPos == len(p.history) {
		p.histPos = 0
		p.full = true
	}
}

// RecordActual feeds an observed price back into the weight tracker for every
// model that contributed to the most recent prediction of the symbol. A
// symbol never predicted is a logged no-op: this path is best-effort, not
// transactional.
func (p *Predictor) RecordActual(ctx context.Context, symbol string, predicted, actual float64) error {
	res := p.lookup(symbol)
	if res == nil {
		p.log.Warn("feedback for unknown prediction",
			applogger.String("symbol", symbol),
			applogger.Float64("predicted", predicted))
		return nil
	}

	for _, o := range res.Models {
		if err := p.tracker.RecordOutcome(ctx, o.Model, res.Regime, o.Prediction, actual); err != nil {
			p.log.Warn("record outcome failed",
				applogger.String("model", o.Model),
				applogger.Error(err))
			return err
		}
	}

	p.log.Info("outcome recorded",
		applogger.String("symbol", symbol),
		applogger.Float64("actual", actual),
		applogger.Int("models", len(res.Models)))
	return nil
}

// lookup returns the newest history entry for the symbol.
func (p *Predictor) lookup(symbol string) *models.PredictionResult {
	p.histMu.Lock()
	defer p.histMu.Unlock()

	n := p.histPos
	if p.full {
		n = len(p.history)
	}
	for i := 1; i <= n; i++ {
		idx := (p.histPos - i + len(p.history)) % len(p.history)
		if r := p.history[idx]; r != nil && r.Symbol == symbol {
			return r
		}
	}
	return nil
}

// Report aggregates the in-memory history into summary statistics. Pure read.
func (p *Predictor) Report() *models.PerformanceReport {
	p.histMu.Lock()
	entries := make([]*models.PredictionResult, 0, len(p.history))
	for _, r := range p.history {
		if r != nil {
			entries = append(entries, r)
		}
	}
	p.histMu.Unlock()

	rep := &models.PerformanceReport{
		TotalPredictions: len(entries),
		Decisions:        make(map[models.Decision]int),
		Regimes:          make(map[models.Regime]int),
		ModelStats:       p.tracker.Performance(),
		GeneratedAt:      time.Now().UTC(),
	}
	var confSum, trustSum float64
	for _, r := range entries {
		confSum += r.AdjustedConfidence
		trustSum += r.TrustScore
		rep.Decisions[r.Decision]++
		rep.Regimes[r.Regime]++
	}
	if len(entries) > 0 {
		rep.AvgConfidence = confSum / float64(len(entries))
		rep.AvgTrust = trustSum / float64(len(entries))
	}
	return rep
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
