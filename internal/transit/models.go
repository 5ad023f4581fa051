package transit

import (
	"context"
	"time"

	"github.com/citytransit/transitengine/internal/network"
)

// Snapshots provides the network snapshot in effect. *network.Store implements it.
type Snapshots interface {
	Current() (*network.Snapshot, error)
	Rebuild(ctx context.Context) (*network.Snapshot, error)
}

// NearbyStop is a stop found around a point with the routes serving it.
type NearbyStop struct {
	Stop           *network.Stop
	DistanceMeters float64
	Routes         []*network.Route
}

// Status describes the snapshot in effect.
type Status struct {
	Ready    bool
	Version  int64
	BuiltAt  time.Time
	Stops    int
	Routes   int
	Vehicles int
}
