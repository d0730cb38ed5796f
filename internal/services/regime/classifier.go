package regime

import (
	"context"
	"time"

	"StockPulse/internal/domain/models"
	domsvc "StockPulse/internal/domain/service"
	"StockPulse/internal/services/features"
)

// Quality factor weights: completeness, recency, span.
const (
	completenessWeight = 0.4
	recencyWeight      = 0.3
	spanWeight         = 0.3
)

// Config tunes the classifier.
type Config struct {
	ShortWindow  int           // short moving average, bars
	LongWindow   int           // long moving average, bars
	VolThreshold float64       // stddev of returns above this is volatile
	SpanTarget   int           // window length for a full span score
	MaxStaleness time.Duration // last bar older than this scores zero recency
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		ShortWindow:  20,
		LongWindow:   50,
		VolThreshold: 0.03,
		SpanTarget:   250,
		MaxStaleness: 30 * 24 * time.Hour,
	}
}

// Classifier derives a market regime and data quality from a trailing window
// of bars. Deterministic; its only failure mode is insufficient data, which
// yields quality 0 and the conservative volatile regime.
type Classifier struct {
	cfg Config
	now func() time.Time
}

// New creates a classifier with the given config, filling zero fields from
// defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = def.ShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = def.LongWindow
	}
	if cfg.VolThreshold <= 0 {
		cfg.VolThreshold = def.VolThreshold
	}
	if cfg.SpanTarget <= 0 {
		cfg.SpanTarget = def.SpanTarget
	}
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = def.MaxStaleness
	}
	return &Classifier{cfg: cfg, now: time.Now}
}

// Classify labels the window. A window shorter than the long moving average
// is classified volatile with zero quality rather than failing.
func (c *Classifier) Classify(_ context.Context, bars []models.Bar) (models.MarketContext, error) {
	if len(bars) < c.cfg.LongWindow {
		return models.MarketContext{
			Regime:      models.RegimeVolatile,
			DataQuality: 0,
		}, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	shortMA := features.SMA(closes, c.cfg.ShortWindow)
	longMA := features.SMA(closes, c.cfg.LongWindow)
	vol := features.StdDev(features.LogReturns(closes[len(closes)-c.cfg.LongWindow:]))
	price := closes[len(closes)-1]

	mc := models.MarketContext{
		DataQuality: c.dataQuality(bars),
		ShortMA:     shortMA,
		LongMA:      longMA,
		Volatility:  vol,
	}

	switch {
	case vol > c.cfg.VolThreshold:
		mc.Regime = models.RegimeVolatile
	case price > shortMA && shortMA > longMA:
		mc.Regime = models.RegimeBull
	case price < shortMA && shortMA < longMA:
		mc.Regime = models.RegimeBear
	default:
		mc.Regime = models.RegimeSideways
	}
	return mc, nil
}

// dataQuality combines completeness, recency, and span into [0,1].
func (c *Classifier) dataQuality(bars []models.Bar) float64 {
	valid := 0
	for _, b := range bars {
		if b.Close > 0 && b.High >= b.Low {
			valid++
		}
	}
	completeness := float64(valid) / float64(len(bars))

	recency := 0.0
	if age := c.now().Sub(bars[len(bars)-1].Timestamp); age < c.cfg.MaxStaleness {
		recency = 1 - age.Seconds()/c.cfg.MaxStaleness.Seconds()
	}

	span := float64(len(bars)) / float64(c.cfg.SpanTarget)
	if span > 1 {
		span = 1
	}

	return completenessWeight*completeness + recencyWeight*recency + spanWeight*span
}

var _ domsvc.RegimeClassifier = (*Classifier)(nil)
