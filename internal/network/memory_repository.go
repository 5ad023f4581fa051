package network

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and fixtures. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data Data
}

// NewInMemoryRepository creates a repository serving a copy of data.
func NewInMemoryRepository(data *Data) *InMemoryRepository {
	r := &InMemoryRepository{}
	if data != nil {
		r.data = copyData(data)
	}
	return r
}

// LoadNetwork returns a copy of the stored network.
func (r *InMemoryRepository) LoadNetwork(_ context.Context) (*Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := copyData(&r.data)
	return &d, nil
}

// Replace swaps the stored network, simulating a mutation in the store.
func (r *InMemoryRepository) Replace(data *Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = copyData(data)
}

func copyData(d *Data) Data {
	return Data{
		Stops:          append([]Stop(nil), d.Stops...),
		TransportTypes: append([]TransportType(nil), d.TransportTypes...),
		Routes:         append([]Route(nil), d.Routes...),
		RouteStops:     append([]RouteStop(nil), d.RouteStops...),
		RoutePoints:    append([]RoutePoint(nil), d.RoutePoints...),
		Schedules:      append([]Schedule(nil), d.Schedules...),
		Vehicles:       append([]Vehicle(nil), d.Vehicles...),
		Assignments:    append([]Assignment(nil), d.Assignments...),
	}
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
