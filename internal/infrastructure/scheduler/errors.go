package scheduler

import "errors"

// ErrInvalidConfig is returned when loop configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")
