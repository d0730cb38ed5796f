package ensemble

import (
	"errors"
	"math"
	"testing"

	"StockPulse/internal/domain/models"
)

func out(model string, pred, conf float64) models.ModelOutput {
	return models.ModelOutput{Model: model, Prediction: pred, Confidence: conf}
}

func TestCombineEmpty(t *testing.T) {
	_, err := New(ModeWeighted).Combine(nil, nil)
	if !errors.Is(err, models.ErrNoModelsAvailable) {
		t.Fatalf("expected ErrNoModelsAvailable, got %v", err)
	}
}

func TestCombineSingleModel(t *testing.T) {
	res, err := New(ModeWeighted).Combine(
		[]models.ModelOutput{out("transformer", 150, 0.8)},
		map[string]float64{"transformer": 1},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Blended != 150 {
		t.Fatalf("expected 150, got %v", res.Blended)
	}
	if res.Uncertainty != 0 {
		t.Fatalf("single model should report zero uncertainty, got %v", res.Uncertainty)
	}
	if !res.LowDiversity {
		t.Fatalf("single model should flag low diversity")
	}
	if res.IntervalLow != 150 || res.IntervalHigh != 150 {
		t.Fatalf("degenerate interval expected, got [%v, %v]", res.IntervalLow, res.IntervalHigh)
	}
}

func TestCombineWeighted(t *testing.T) {
	outputs := []models.ModelOutput{
		out("transformer", 100, 0.9),
		out("lstm", 110, 0.6),
	}
	weights := map[string]float64{"transformer": 0.7, "lstm": 0.3}
	res, err := New(ModeWeighted).Combine(outputs, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Effective weights: 0.7*0.9=0.63 and 0.3*0.6=0.18.
	want := (0.63*100 + 0.18*110) / (0.63 + 0.18)
	if math.Abs(res.Blended-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, res.Blended)
	}
	if res.Blended >= 110 || res.Blended <= 100 {
		t.Fatalf("blend should fall between the inputs, got %v", res.Blended)
	}
	if res.LowDiversity {
		t.Fatalf("two models should not flag low diversity")
	}
}

func TestCombineWeightedMissingWeight(t *testing.T) {
	outputs := []models.ModelOutput{
		out("transformer", 100, 0.5),
		out("newmodel", 200, 0.5),
	}
	// newmodel has no adaptive weight yet; it gets an equal share rather
	// than being dropped.
	res, err := New(ModeWeighted).Combine(outputs, map[string]float64{"transformer": 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Blended-150) > 1e-9 {
		t.Fatalf("expected equal-share blend 150, got %v", res.Blended)
	}
}

func TestCombineSimple(t *testing.T) {
	outputs := []models.ModelOutput{
		out("a", 100, 0.5),
		out("b", 120, 0.5),
		out("c", 140, 0.5),
	}
	res, err := New(ModeSimple).Combine(outputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Blended-120) > 1e-9 {
		t.Fatalf("expected mean 120, got %v", res.Blended)
	}
}

func TestCombineMedianIgnoresOutlier(t *testing.T) {
	outputs := []models.ModelOutput{
		out("a", 100, 0.5),
		out("b", 101, 0.5),
		out("c", 500, 0.5),
	}
	res, err := New(ModeMedian).Combine(outputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Blended != 101 {
		t.Fatalf("expected median 101, got %v", res.Blended)
	}
}

func TestCombineInterval(t *testing.T) {
	outputs := []models.ModelOutput{
		out("a", 100, 0.8),
		out("b", 110, 0.8),
	}
	res, err := New(ModeWeighted).Combine(outputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IntervalLow > res.Blended || res.Blended > res.IntervalHigh {
		t.Fatalf("blend %v outside interval [%v, %v]", res.Blended, res.IntervalLow, res.IntervalHigh)
	}
	if res.Uncertainty <= 0 {
		t.Fatalf("expected positive uncertainty for disagreeing models")
	}
	halfWidth := res.IntervalHigh - res.Blended
	if math.Abs(halfWidth-1.96*res.Uncertainty) > 1e-9 {
		t.Fatalf("unexpected interval half-width %v", halfWidth)
	}
}

func TestCombineIntervalFloorsAtZero(t *testing.T) {
	outputs := []models.ModelOutput{
		out("a", 1, 0.5),
		out("b", 50, 0.5),
	}
	res, err := New(ModeSimple).Combine(outputs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IntervalLow < 0 {
		t.Fatalf("interval low must not be negative, got %v", res.IntervalLow)
	}
}

func TestCombinedConfidencePenalizesDisagreement(t *testing.T) {
	agree := []models.ModelOutput{out("a", 100, 0.8), out("b", 100.5, 0.8)}
	disagree := []models.ModelOutput{out("a", 100, 0.8), out("b", 160, 0.8)}

	ra, err := New(ModeSimple).Combine(agree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rd, err := New(ModeSimple).Combine(disagree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rd.Confidence >= ra.Confidence {
		t.Fatalf("disagreement should lower confidence: %v >= %v", rd.Confidence, ra.Confidence)
	}
	if rd.Confidence < 0 {
		t.Fatalf("confidence must not go negative, got %v", rd.Confidence)
	}
}

func TestUnknownModeFallsBackToWeighted(t *testing.T) {
	c := New(Mode("bogus"))
	if c.mode != ModeWeighted {
		t.Fatalf("expected weighted fallback, got %s", c.mode)
	}
}
