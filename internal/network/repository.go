package network

import "context"

// Repository loads the raw network from the backing store.
type Repository interface {
	// LoadNetwork reads stops, routes, route stops, geometry, schedules, vehicles
	// and assignments in one consistent pass.
	LoadNetwork(ctx context.Context) (*Data, error)
}
