package timeseries

import "errors"

// ErrAllocation is returned when a series buffer cannot be allocated
var ErrAllocation = errors.New("failed to allocate time series")
