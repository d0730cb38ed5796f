package ensemble

import (
	"math"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/services/features"
)

// Mode selects the blending strategy.
type Mode string

const (
	ModeWeighted Mode = "weighted" // adaptive weight × confidence
	ModeSimple   Mode = "simple"   // equal weighting
	ModeMedian   Mode = "median"   // robust to one outlier model
)

const (
	// disagreementK scales the coefficient-of-variation penalty on combined
	// confidence.
	disagreementK = 1.0
	// intervalZ is the interval half-width in standard deviations (~95%).
	intervalZ = 1.96
)

// Combiner merges model outputs into one EnsembleResult.
type Combiner struct {
	mode Mode
}

// New creates a combiner. An unknown mode falls back to weighted.
func New(mode Mode) *Combiner {
	switch mode {
	case ModeSimple, ModeMedian:
	default:
		mode = ModeWeighted
	}
	return &Combiner{mode: mode}
}

// Combine blends outputs using the adaptive weights. Returns
// ErrNoModelsAvailable when outputs is empty. Single-model ensembles report
// zero uncertainty with the low-diversity flag set: zero there means unknown,
// not zero risk.
func (c *Combiner) Combine(outputs []models.ModelOutput, weights map[string]float64) (models.EnsembleResult, error) {
	var res models.EnsembleResult
	if len(outputs) == 0 {
		return res, models.ErrNoModelsAvailable
	}

	preds := make([]float64, len(outputs))
	confs := make([]float64, len(outputs))
	for i, o := range outputs {
		preds[i] = o.Prediction
		confs[i] = o.Confidence
	}

	switch c.mode {
	case ModeMedian:
		res.Blended = features.Median(preds)
	case ModeSimple:
		res.Blended = features.Mean(preds)
	default:
		res.Blended = weightedBlend(outputs, weights)
	}

	res.Confidence = combinedConfidence(preds, confs)
	res.Uncertainty = 0
	if len(outputs) > 1 {
		res.Uncertainty = features.StdDev(preds)
	}
	res.LowDiversity = len(outputs) < 2

	res.IntervalLow = res.Blended - intervalZ*res.Uncertainty
	if res.IntervalLow < 0 {
		res.IntervalLow = 0
	}
	res.IntervalHigh = res.Blended + intervalZ*res.Uncertainty
	return res, nil
}

// weightedBlend weights each prediction by adaptiveWeight × confidence,
// renormalized over the surviving models. Models missing from the weight map
// get an equal share so a newly configured model is not silently ignored.
func weightedBlend(outputs []models.ModelOutput, weights map[string]float64) float64 {
	equal := 1.0 / float64(len(outputs))
	var num, den float64
	for _, o := range outputs {
		w, ok := weights[o.Model]
		if !ok || w <= 0 {
			w = equal
		}
		ew := w * o.Confidence
		num += ew * o.Prediction
		den += ew
	}
	if den == 0 {
		return features.Mean(predsOf(outputs))
	}
	return num / den
}

// combinedConfidence averages per-model confidences and penalizes
// disagreement by the coefficient of variation of the predictions.
func combinedConfidence(preds, confs []float64) float64 {
	conf := features.Mean(confs)
	mean := features.Mean(preds)
	if len(preds) > 1 && mean != 0 {
		cv := features.StdDev(preds) / math.Abs(mean)
		conf *= math.Max(0, 1-disagreementK*cv)
	}
	return conf
}

func predsOf(outputs []models.ModelOutput) []float64 {
	out := make([]float64, len(outputs))
	for i, o := range outputs {
		out[i] = o.Prediction
	}
	return out
}
