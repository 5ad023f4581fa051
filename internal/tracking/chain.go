package tracking

import (
	"context"
	"errors"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
)

// Chain asks each source in turn and returns the first fix found. Source errors
// are reported only when no later source has a fix.
type Chain []deviation.FixSource

var _ deviation.FixSource = Chain(nil)

// LatestFix implements deviation.FixSource.
func (c Chain) LatestFix(ctx context.Context, vehicleID string) (network.GpsFix, bool, error) {
	var errs []error
	for _, src := range c {
		if src == nil {
			continue
		}
		fix, ok, err := src.LatestFix(ctx, vehicleID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return fix, true, nil
		}
	}
	return network.GpsFix{}, false, errors.Join(errs...)
}
