package curve

import "codeberg.org/mutker/amdfanctl/internal/errors"

const (
	// Construction Errors
	ErrEmptyCurve        = errors.ErrorCode("curve_empty")
	ErrMalformedPoint    = errors.ErrorCode("curve_malformed_point")
	ErrNegativeSpeed     = errors.ErrorCode("curve_negative_speed")
	ErrSpeedAboveMax     = errors.ErrorCode("curve_speed_above_max")
	ErrTempsNotAscending = errors.ErrorCode("curve_temps_not_ascending")
	ErrSpeedsDecreasing  = errors.ErrorCode("curve_speeds_decreasing")
	ErrSpeedBelowFloor   = errors.ErrorCode("curve_speed_below_floor")
)
