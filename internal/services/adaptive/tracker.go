package adaptive

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/pkg/logger"
)

// Config tunes the weight tracker.
type Config struct {
	LearningRate float64 // EMA step toward the accuracy-derived target
	WindowSize   int     // bounded error history per (model, regime)
	WeightFloor  float64 // no model's weight drops below this
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.1,
		WindowSize:   100,
		WeightFloor:  0.05,
	}
}

// boostTable biases confidence per regime per model. A tunable table, not
// learned online; "*" applies to every model.
var boostTable = map[models.Regime]map[string]float64{
	models.RegimeBull:     {"transformer": 0.10},
	models.RegimeBear:     {"lstm": 0.05},
	models.RegimeSideways: {},
	models.RegimeVolatile: {"*": -0.10},
}

// Tracker owns the adaptive weight state: per-model ensemble weights and
// bounded per-regime error histories, persisted through a StateStore.
// Reads take snapshots; RecordOutcome serializes read-modify-write-persist
// under a single lock so concurrent feedback cannot break the sum-to-1
// invariant or corrupt the persisted state.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	state *models.AdaptiveState
	store repository.StateStore
	log   *logger.Logger
}

// New creates a tracker for the given models, loading persisted state if the
// store has any. A load failure falls back to a fresh state with a warning.
func New(ctx context.Context, cfg Config, modelIDs []string, store repository.StateStore, log *logger.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.WeightFloor <= 0 || cfg.WeightFloor >= 1/float64(max(1, len(modelIDs))) {
		cfg.WeightFloor = def.WeightFloor
	}

	t := &Tracker{cfg: cfg, store: store, log: log}

	if store != nil {
		st, err := store.Load(ctx)
		if err != nil {
			log.Warn("adaptive: load state failed, starting fresh", logger.Error(err))
		} else if st != nil && compatible(st, modelIDs) {
			t.state = st
			log.Info("adaptive: state restored",
				logger.Int("models", len(st.Weights)),
				logger.Any("weights", st.Weights))
		}
	}
	if t.state == nil {
		t.state = models.NewAdaptiveState(modelIDs)
	}
	return t
}

// compatible rejects persisted state whose model set no longer matches the
// configured one.
func compatible(st *models.AdaptiveState, modelIDs []string) bool {
	if len(st.Weights) != len(modelIDs) {
		return false
	}
	for _, id := range modelIDs {
		if _, ok := st.Weights[id]; !ok {
			return false
		}
	}
	return true
}

// Weights returns a snapshot of current weights for the given regime. The
// regime itself does not change the weights in this version; the regime bias
// is applied to confidence via ConfidenceBoost.
func (t *Tracker) Weights(_ models.Regime) map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.state.Weights))
	for k, v := range t.state.Weights {
		out[k] = v
	}
	return out
}

// ConfidenceBoost returns the regime confidence adjustment for a model.
func (t *Tracker) ConfidenceBoost(regime models.Regime, model string) float64 {
	row, ok := boostTable[regime]
	if !ok {
		return 0
	}
	if b, ok := row[model]; ok {
		return b
	}
	return row["*"]
}

// RecordOutcome folds one observed outcome into the model's error history and
// weights, then persists synchronously. A persistence failure is logged and
// the in-memory update stands; the next successful save catches up.
func (t *Tracker) RecordOutcome(ctx context.Context, model string, regime models.Regime, predicted, actual float64) error {
	if actual <= 0 || math.IsNaN(actual) || math.IsInf(actual, 0) ||
		math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return fmt.Errorf("actual=%v predicted=%v: %w", actual, predicted, models.ErrInvalidOutcome)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.state.Weights[model]; !ok {
		return fmt.Errorf("unknown model %q: %w", model, models.ErrInvalidOutcome)
	}

	ape := math.Abs(actual-predicted) / actual

	byRegime := t.state.Errors[model]
	if byRegime == nil {
		byRegime = make(map[models.Regime][]float64)
		t.state.Errors[model] = byRegime
	}
	hist := append(byRegime[regime], ape)
	if len(hist) > t.cfg.WindowSize {
		hist = hist[len(hist)-t.cfg.WindowSize:]
	}
	byRegime[regime] = hist

	t.updateWeightLocked(model)
	t.state.UpdatedAt = time.Now().UTC()

	if t.store != nil {
		if err := t.store.Save(ctx, t.state); err != nil {
			t.log.Warn("adaptive: persist state failed", logger.Error(err))
		}
	}
	return nil
}

// updateWeightLocked recomputes the model's weight from its recent average
// error across regimes, then renormalizes all weights with the floor applied.
func (t *Tracker) updateWeightLocked(model string) {
	avgErr := t.avgErrorLocked(model)
	target := 1 / (1 + avgErr)
	lr := t.cfg.LearningRate
	t.state.Weights[model] = lr*target + (1-lr)*t.state.Weights[model]
	t.normalizeLocked()
}

// avgErrorLocked averages the model's recent errors over all regimes.
func (t *Tracker) avgErrorLocked(model string) float64 {
	var sum float64
	var n int
	for _, errs := range t.state.Errors[model] {
		for _, e := range errs {
			sum += e
		}
		n += len(errs)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// normalizeLocked rescales weights to sum to 1 with the floor respected:
// models that would fall below the floor are pinned to it and the remaining
// mass is split proportionally among the rest.
func (t *Tracker) normalizeLocked() {
	weights := t.state.Weights
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		equal := 1.0 / float64(len(weights))
		for k := range weights {
			weights[k] = equal
		}
		return
	}

	floor := t.cfg.WeightFloor
	floored := make(map[string]bool, len(weights))
	for {
		var free float64
		for k, w := range weights {
			if !floored[k] {
				free += w
			}
		}
		avail := 1 - floor*float64(len(floored))
		changed := false
		for k, w := range weights {
			if floored[k] {
				continue
			}
			if w/free*avail < floor {
				floored[k] = true
				changed = true
			}
		}
		if !changed {
			for k, w := range weights {
				if floored[k] {
					weights[k] = floor
				} else {
					weights[k] = w / free * avail
				}
			}
			return
		}
	}
}

// Performance summarizes each model's feedback history.
func (t *Tracker) Performance() []models.ModelPerformance {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.ModelPerformance, 0, len(t.state.Weights))
	for model, w := range t.state.Weights {
		avgErr := t.avgErrorLocked(model)
		var n int
		for _, errs := range t.state.Errors[model] {
			n += len(errs)
		}
		out = append(out, models.ModelPerformance{
			Model:        model,
			Weight:       w,
			Observations: n,
			AvgError:     avgErr,
			Accuracy:     1 / (1 + avgErr),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Snapshot returns a deep copy of the current state.
func (t *Tracker) Snapshot() *models.AdaptiveState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}
