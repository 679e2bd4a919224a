package types

import "errors"

// Sentinel errors for the backtest system. Callers wrap these with the
// instrument and date that triggered them.
var (
	// Data errors
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataIntegrity    = errors.New("data integrity violation")
	ErrNoData           = errors.New("no data available")

	// Configuration errors
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownStrategy   = errors.New("unknown strategy variant")
	ErrUnknownInstrument = errors.New("unknown instrument")
)
