package hwinfo

import (
	"context"
	"errors"
)

var (
	// ErrCollectionFailed reports that no usable hardware data could be
	// gathered. Partial data is not an error.
	ErrCollectionFailed = errors.New("hardware collection failed")
)

// Collector gathers a point-in-time hardware Snapshot. Implementations may
// return partial data per component on query failure; an error means the
// collection as a whole produced nothing usable.
type Collector interface {
	Collect(ctx context.Context) (Snapshot, error)
}
