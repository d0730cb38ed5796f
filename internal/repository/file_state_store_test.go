package repository

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "adaptive.json")
	store := NewFileStateStore(path)
	ctx := context.Background()

	st := models.NewAdaptiveState([]string{"transformer", "lstm"})
	st.Weights["transformer"] = 0.7
	st.Weights["lstm"] = 0.3
	st.Errors["lstm"] = map[models.Regime][]float64{
		models.RegimeBull: {0.1, 0.05},
	}
	st.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatalf("expected state, got nil")
	}
	if math.Abs(got.Weights["transformer"]-0.7) > 1e-9 {
		t.Fatalf("unexpected transformer weight %v", got.Weights["transformer"])
	}
	errs := got.Errors["lstm"][models.RegimeBull]
	if len(errs) != 2 || errs[0] != 0.1 || errs[1] != 0.05 {
		t.Fatalf("unexpected error history %v", errs)
	}
	if !got.UpdatedAt.Equal(st.UpdatedAt) {
		t.Fatalf("unexpected UpdatedAt %v", got.UpdatedAt)
	}
}

func TestFileStateStoreLoadMissing(t *testing.T) {
	store := NewFileStateStore(filepath.Join(t.TempDir(), "nope.json"))
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state for missing file, got %v", got)
	}
}

func TestFileStateStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adaptive.json")
	store := NewFileStateStore(path)
	ctx := context.Background()

	first := models.NewAdaptiveState([]string{"transformer", "lstm"})
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := models.NewAdaptiveState([]string{"transformer", "lstm"})
	second.Weights["transformer"] = 0.9
	second.Weights["lstm"] = 0.1
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(got.Weights["transformer"]-0.9) > 1e-9 {
		t.Fatalf("expected overwritten weights, got %v", got.Weights)
	}
}

func TestMemoryStateStoreIsolation(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	st := models.NewAdaptiveState([]string{"transformer", "lstm"})
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the saved state must not leak into the store.
	st.Weights["transformer"] = 0.99

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if math.Abs(got.Weights["transformer"]-0.5) > 1e-9 {
		t.Fatalf("store shares memory with caller: %v", got.Weights)
	}
}
