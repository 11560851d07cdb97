package measurement

import "errors"

// ErrInvalidMeasurement is returned when a measurement has no timestamp or a
// value that is not a finite number.
var ErrInvalidMeasurement = errors.New("invalid measurement")
