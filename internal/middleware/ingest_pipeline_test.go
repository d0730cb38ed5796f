package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
)

type fakeProc struct {
	mu   sync.Mutex
	got  []*models.Quote
	fail bool
}

func (f *fakeProc) Process(_ context.Context, q *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("downstream down")
	}
	f.got = append(f.got, q)
	return nil
}

func (f *fakeProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type nilMetrics struct{}

func (nilMetrics) RecordMessageSent(string, string)  {}
func (nilMetrics) RecordError(string)                {}
func (nilMetrics) RecordLastPrice(string, float64)   {}
func (nilMetrics) RecordLatency(string, float64)     {}
func (nilMetrics) RecordDecision(string, string)     {}
func (nilMetrics) RecordModelWeight(string, float64) {}

func quote(symbol string, price float64) *models.Quote {
	return &models.Quote{Symbol: symbol, Price: price, Volume: 10, Timestamp: time.Now()}
}

func TestPipelineForwards(t *testing.T) {
	proc := &fakeProc{}
	p := NewIngestPipeline(proc, nilMetrics{})
	if err := p.Process(context.Background(), quote("AAPL", 150)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("expected 1 forwarded quote, got %d", proc.count())
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	proc := &fakeProc{}
	p := NewIngestPipeline(proc, nilMetrics{})
	ctx := context.Background()

	if err := p.Process(ctx, nil); err == nil {
		t.Fatalf("nil quote should be rejected")
	}
	if err := p.Process(ctx, &models.Quote{Price: 1, Timestamp: time.Now()}); err == nil {
		t.Fatalf("empty symbol should be rejected")
	}
	if err := p.Process(ctx, &models.Quote{Symbol: "AAPL", Price: -1, Timestamp: time.Now()}); err == nil {
		t.Fatalf("negative price should be rejected")
	}
	if proc.count() != 0 {
		t.Fatalf("invalid quotes must not reach downstream")
	}
}

func TestPipelineThrottles(t *testing.T) {
	proc := &fakeProc{}
	p := NewIngestPipeline(proc, nilMetrics{}, WithMaxRPS(3))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := p.Process(ctx, quote("AAPL", 150)); err != nil {
			t.Fatalf("throttled quotes drop silently, got %v", err)
		}
	}
	if proc.count() >= 10 {
		t.Fatalf("expected throttling to drop some quotes, forwarded %d", proc.count())
	}
	if proc.count() < 3 {
		t.Fatalf("burst capacity should pass, forwarded %d", proc.count())
	}
}

func TestPipelineBuffersOnFailure(t *testing.T) {
	proc := &fakeProc{fail: true}
	p := NewIngestPipeline(proc, nilMetrics{}, WithBufferSize(10))
	ctx := context.Background()

	if err := p.Process(ctx, quote("AAPL", 150)); err == nil {
		t.Fatalf("downstream failure should surface")
	}

	// Recover downstream and let the flusher drain the buffer.
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if proc.count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered quote never flushed")
}
