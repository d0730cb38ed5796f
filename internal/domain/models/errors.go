package models

import "errors"

var (
	// ErrInsufficientData means the historical window is too short or too
	// stale to classify and predict.
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrNoModelsAvailable means every model adapter failed for this call.
	ErrNoModelsAvailable = errors.New("no models available")

	// ErrModelUnavailable is a per-adapter failure; the ensemble tolerates it
	// as long as at least one model succeeds.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidOutcome means feedback carried a non-positive or non-finite
	// actual price.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
