package adaptive

import (
	"context"
	"errors"
	"math"
	"testing"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/repository"
	"StockPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestTracker(t *testing.T, store domrepo.StateStore) *Tracker {
	t.Helper()
	return New(context.Background(), DefaultConfig(), []string{"transformer", "lstm"}, store, testLogger(t))
}

func checkInvariants(t *testing.T, tr *Tracker) {
	t.Helper()
	var sum float64
	for model, w := range tr.Weights(models.RegimeBull) {
		if w < 0.05-1e-9 {
			t.Fatalf("weight for %s below floor: %v", model, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestInitialWeightsEqual(t *testing.T) {
	tr := newTestTracker(t, nil)
	w := tr.Weights(models.RegimeBull)
	if len(w) != 2 {
		t.Fatalf("expected 2 weights, got %d", len(w))
	}
	if math.Abs(w["transformer"]-0.5) > 1e-9 || math.Abs(w["lstm"]-0.5) > 1e-9 {
		t.Fatalf("expected equal initial weights, got %v", w)
	}
}

func TestRecordOutcomeInvalid(t *testing.T) {
	tr := newTestTracker(t, nil)
	ctx := context.Background()

	cases := []struct{ predicted, actual float64 }{
		{100, 0},
		{100, -5},
		{100, math.NaN()},
		{math.NaN(), 100},
		{math.Inf(1), 100},
	}
	for _, c := range cases {
		err := tr.RecordOutcome(ctx, "lstm", models.RegimeBull, c.predicted, c.actual)
		if !errors.Is(err, models.ErrInvalidOutcome) {
			t.Fatalf("predicted=%v actual=%v: expected ErrInvalidOutcome, got %v", c.predicted, c.actual, err)
		}
	}
	checkInvariants(t, tr)
}

func TestRecordOutcomeUnknownModel(t *testing.T) {
	tr := newTestTracker(t, nil)
	err := tr.RecordOutcome(context.Background(), "prophet", models.RegimeBull, 100, 100)
	if !errors.Is(err, models.ErrInvalidOutcome) {
		t.Fatalf("expected ErrInvalidOutcome for unknown model, got %v", err)
	}
}

func TestWeightsShiftTowardAccurateModel(t *testing.T) {
	tr := newTestTracker(t, nil)
	ctx := context.Background()

	// lstm predicts well, transformer misses by 30% every time.
	for i := 0; i < 20; i++ {
		if err := tr.RecordOutcome(ctx, "lstm", models.RegimeBull, 101, 100); err != nil {
			t.Fatalf("record lstm: %v", err)
		}
		if err := tr.RecordOutcome(ctx, "transformer", models.RegimeBull, 130, 100); err != nil {
			t.Fatalf("record transformer: %v", err)
		}
		checkInvariants(t, tr)
	}

	w := tr.Weights(models.RegimeBull)
	if w["lstm"] <= w["transformer"] {
		t.Fatalf("accurate model should outweigh inaccurate one: %v", w)
	}
}

func TestErrorWindowBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 10
	tr := New(context.Background(), cfg, []string{"transformer", "lstm"}, nil, testLogger(t))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := tr.RecordOutcome(ctx, "lstm", models.RegimeBear, 100, 100); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	st := tr.Snapshot()
	if n := len(st.Errors["lstm"][models.RegimeBear]); n != 10 {
		t.Fatalf("expected bounded window of 10, got %d", n)
	}
}

func TestStatePersistedAndRestored(t *testing.T) {
	store := repository.NewMemoryStateStore()
	ctx := context.Background()

	tr := newTestTracker(t, store)
	for i := 0; i < 10; i++ {
		if err := tr.RecordOutcome(ctx, "lstm", models.RegimeBull, 100, 100); err != nil {
			t.Fatalf("record: %v", err)
		}
		if err := tr.RecordOutcome(ctx, "transformer", models.RegimeBull, 150, 100); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	want := tr.Weights(models.RegimeBull)

	restored := newTestTracker(t, store)
	got := restored.Weights(models.RegimeBull)
	for model, w := range want {
		if math.Abs(got[model]-w) > 1e-9 {
			t.Fatalf("weight for %s not restored: want %v, got %v", model, w, got[model])
		}
	}
}

func TestIncompatibleStateIgnored(t *testing.T) {
	store := repository.NewMemoryStateStore()
	ctx := context.Background()

	st := models.NewAdaptiveState([]string{"transformer", "lstm", "prophet"})
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	tr := newTestTracker(t, store)
	w := tr.Weights(models.RegimeBull)
	if len(w) != 2 {
		t.Fatalf("expected fresh 2-model state, got %v", w)
	}
}

func TestConfidenceBoost(t *testing.T) {
	tr := newTestTracker(t, nil)

	if got := tr.ConfidenceBoost(models.RegimeBull, "transformer"); got != 0.10 {
		t.Fatalf("bull/transformer: got %v", got)
	}
	if got := tr.ConfidenceBoost(models.RegimeBear, "lstm"); got != 0.05 {
		t.Fatalf("bear/lstm: got %v", got)
	}
	if got := tr.ConfidenceBoost(models.RegimeSideways, "transformer"); got != 0 {
		t.Fatalf("sideways should be neutral, got %v", got)
	}
	// Volatile applies to every model via the wildcard.
	if got := tr.ConfidenceBoost(models.RegimeVolatile, "lstm"); got != -0.10 {
		t.Fatalf("volatile/lstm: got %v", got)
	}
	if got := tr.ConfidenceBoost(models.RegimeVolatile, "transformer"); got != -0.10 {
		t.Fatalf("volatile/transformer: got %v", got)
	}
}

func TestPerformanceSorted(t *testing.T) {
	tr := newTestTracker(t, nil)
	ctx := context.Background()
	if err := tr.RecordOutcome(ctx, "lstm", models.RegimeBull, 110, 100); err != nil {
		t.Fatalf("record: %v", err)
	}

	perf := tr.Performance()
	if len(perf) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(perf))
	}
	if perf[0].Model != "lstm" || perf[1].Model != "transformer" {
		t.Fatalf("expected sorted models, got %s, %s", perf[0].Model, perf[1].Model)
	}
	if perf[0].Observations != 1 {
		t.Fatalf("expected 1 observation for lstm, got %d", perf[0].Observations)
	}
	if math.Abs(perf[0].AvgError-0.1) > 1e-9 {
		t.Fatalf("expected avg error 0.1, got %v", perf[0].AvgError)
	}
}
