package analytics

import "errors"

var (
	// ErrInvalidWindow is returned when a bucketing window ends at or before its start.
	ErrInvalidWindow = errors.New("invalid window: end must be after start")

	// ErrEmptyDimensionSet is returned when shares are requested over no dimensions.
	ErrEmptyDimensionSet = errors.New("empty dimension set")
)
