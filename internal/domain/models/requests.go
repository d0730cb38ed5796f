package models

import "time"

// BarInput is a caller-supplied historical bar.
type BarInput struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Open      float64   `json:"open" validate:"gte=0"`
	High      float64   `json:"high" validate:"gte=0"`
	Low       float64   `json:"low" validate:"gte=0"`
	Close     float64   `json:"close" validate:"gt=0"`
	Volume    float64   `json:"volume" validate:"gte=0"`
}

// PredictRequest asks for a blended prediction. Bars are optional; when
// omitted the historical window is loaded from storage.
type PredictRequest struct {
	Symbol        string     `json:"symbol" validate:"required,uppercase,max=12"`
	Bars          []BarInput `json:"bars,omitempty" validate:"omitempty,dive"`
	MinConfidence float64    `json:"min_confidence" default:"0.6" validate:"gte=0,lte=1"`
}

// OutcomeRequest reports the observed price for an earlier prediction.
type OutcomeRequest struct {
	Symbol    string  `json:"symbol" validate:"required,uppercase,max=12"`
	Predicted float64 `json:"predicted" validate:"gt=0"`
	Actual    float64 `json:"actual" validate:"gt=0"`
}

// BarsQuery selects stored bars for a symbol.
type BarsQuery struct {
	Symbol    string `query:"symbol" validate:"required,uppercase,max=12"`
	Timeframe string `query:"timeframe" default:"1d" validate:"oneof=1m 1h 1d"`
	Limit     int    `query:"limit" default:"250" validate:"gt=0,lte=1000"`
}
