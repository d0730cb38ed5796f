package models

import "time"

// Regime is a coarse label for recent market behavior.
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
	RegimeVolatile Regime = "volatile"
)

// Regimes lists all known regimes.
func Regimes() []Regime {
	return []Regime{RegimeBull, RegimeBear, RegimeSideways, RegimeVolatile}
}

// Decision gates how a prediction should be treated downstream.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionCaution Decision = "caution"
	DecisionReject  Decision = "reject"
)

// ModelOutput is a single model's point prediction with self-reported
// confidence. Immutable once produced by an adapter.
type ModelOutput struct {
	Model      string  `json:"model"`
	Prediction float64 `json:"prediction"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// MarketContext is the classifier's view of the input window.
type MarketContext struct {
	Regime      Regime  `json:"regime"`
	DataQuality float64 `json:"data_quality"` // [0,1]
	ShortMA     float64 `json:"short_ma"`
	LongMA      float64 `json:"long_ma"`
	Volatility  float64 `json:"volatility"` // stddev of log returns
}

// EnsembleResult merges multiple model outputs into a blended prediction.
type EnsembleResult struct {
	Blended      float64 `json:"blended"`
	Confidence   float64 `json:"confidence"`  // [0,1], disagreement-penalized
	Uncertainty  float64 `json:"uncertainty"` // stddev of predictions, 0 for one model
	IntervalLow  float64 `json:"interval_low"`
	IntervalHigh float64 `json:"interval_high"`
	LowDiversity bool    `json:"low_diversity"` // fewer than two contributing models
}

// PredictionResult is the full output of one prediction call.
type PredictionResult struct {
	Symbol             string             `json:"symbol"`
	Prediction         float64            `json:"prediction"`
	BaseConfidence     float64            `json:"base_confidence"`
	AdjustedConfidence float64            `json:"adjusted_confidence"`
	ConfidenceDelta    float64            `json:"confidence_delta"`
	IntervalLow        float64            `json:"interval_low"`
	IntervalHigh       float64            `json:"interval_high"`
	Uncertainty        float64            `json:"uncertainty"`
	DataQuality        float64            `json:"data_quality"`
	Regime             Regime             `json:"regime"`
	TrustScore         float64            `json:"trust_score"`
	Decision           Decision           `json:"decision"`
	LowDiversity       bool               `json:"low_diversity"`
	Note               string             `json:"note,omitempty"`
	Models             []ModelOutput      `json:"models"`
	Weights            map[string]float64 `json:"weights"`
	Timestamp          time.Time          `json:"timestamp"`
}

// ModelPerformance summarizes one model's feedback history.
type ModelPerformance struct {
	Model        string  `json:"model"`
	Weight       float64 `json:"weight"`
	Observations int     `json:"observations"`
	AvgError     float64 `json:"avg_error"` // mean absolute percentage error
	Accuracy     float64 `json:"accuracy"`  // 1/(1+avg_error)
}

// PerformanceReport aggregates the coordinator's recent history.
type PerformanceReport struct {
	TotalPredictions int                `json:"total_predictions"`
	AvgConfidence    float64            `json:"avg_confidence"`
	AvgTrust         float64            `json:"avg_trust"`
	Decisions        map[Decision]int   `json:"decisions"`
	Regimes          map[Regime]int     `json:"regimes"`
	ModelStats       []ModelPerformance `json:"model_stats"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// AdaptiveState is the tracker's persisted learning state. Weights across all
// known models sum to 1 after each update, and no weight falls below the floor.
type AdaptiveState struct {
	Weights   map[string]float64              `json:"weights"`
	Errors    map[string]map[Regime][]float64 `json:"errors"` // model -> regime -> recent APEs
	UpdatedAt time.Time                       `json:"updated_at"`
}

// NewAdaptiveState returns an empty state with equal weights for the given
// models.
func NewAdaptiveState(modelIDs []string) *AdaptiveState {
	st := &AdaptiveState{
		Weights: make(map[string]float64, len(modelIDs)),
		Errors:  make(map[string]map[Regime][]float64, len(modelIDs)),
	}
	if len(modelIDs) == 0 {
		return st
	}
	w := 1.0 / float64(len(modelIDs))
	for _, id := range modelIDs {
		st.Weights[id] = w
		st.Errors[id] = make(map[Regime][]float64)
	}
	return st
}

// Clone returns a deep copy so snapshots never alias tracker internals.
func (s *AdaptiveState) Clone() *AdaptiveState {
	cp := &AdaptiveState{
		Weights:   make(map[string]float64, len(s.Weights)),
		Errors:    make(map[string]map[Regime][]float64, len(s.Errors)),
		UpdatedAt: s.UpdatedAt,
	}
	for k, v := range s.Weights {
		cp.Weights[k] = v
	}
	for model, byRegime := range s.Errors {
		mr := make(map[Regime][]float64, len(byRegime))
		for regime, errs := range byRegime {
			mr[regime] = append([]float64(nil), errs...)
		}
		cp.Errors[model] = mr
	}
	return cp
}
