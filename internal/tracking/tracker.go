// Package tracking ingests live vehicle positions and serves the latest fix per vehicle.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
)

// ErrInvalidFix is returned for fixes without a vehicle, coordinate or timestamp.
var ErrInvalidFix = errors.New("invalid gps fix")

// Tracker keeps the newest fix per vehicle in memory. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	fixes map[string]network.GpsFix
}

var _ deviation.FixSource = (*Tracker)(nil)

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{fixes: make(map[string]network.GpsFix)}
}

// Record stores fix if it is newer than the one held for its vehicle. It reports
// whether the fix was kept; out-of-order fixes are ignored.
func (t *Tracker) Record(fix network.GpsFix) (bool, error) {
	if err := validate(fix); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.fixes[fix.VehicleID]; ok && !fix.RecordedAt.After(prev.RecordedAt) {
		return false, nil
	}
	t.fixes[fix.VehicleID] = fix
	return true, nil
}

// LatestFix implements deviation.FixSource.
func (t *Tracker) LatestFix(_ context.Context, vehicleID string) (network.GpsFix, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fix, ok := t.fixes[vehicleID]
	return fix, ok, nil
}

// Len returns the number of tracked vehicles.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fixes)
}

// Prune forgets vehicles whose newest fix is older than cutoff and returns how many
// were removed.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, fix := range t.fixes {
		if fix.RecordedAt.Before(cutoff) {
			delete(t.fixes, id)
			removed++
		}
	}
	return removed
}

func validate(fix network.GpsFix) error {
	switch {
	case fix.VehicleID == "":
		return errors.Join(ErrInvalidFix, errors.New("missing vehicle id"))
	case !geo.Valid(fix.Point):
		return errors.Join(ErrInvalidFix, errors.New("coordinate out of range"))
	case fix.RecordedAt.IsZero():
		return errors.Join(ErrInvalidFix, errors.New("missing timestamp"))
	}
	return nil
}
