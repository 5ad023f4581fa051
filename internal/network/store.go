package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/resilience"
)

// StoreConfig contains configuration for the snapshot store.
type StoreConfig struct {
	// Repository is the source of raw network data.
	Repository Repository

	// Build controls snapshot derivation.
	Build BuildOptions

	// Executor guards repository loads. Optional.
	Executor *resilience.Executor

	// Logger is used for rebuild logging.
	Logger zerolog.Logger
}

// Store holds the current snapshot and swaps in new ones atomically. Readers never
// block; rebuilds are serialized.
type Store struct {
	repo     Repository
	build    BuildOptions
	executor *resilience.Executor
	logger   zerolog.Logger

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// NewStore creates a store with no snapshot. Call Rebuild before serving queries.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		repo:     cfg.Repository,
		build:    cfg.Build,
		executor: cfg.Executor,
		logger:   cfg.Logger,
	}
}

// Current returns the snapshot in effect, or ErrNoSnapshot before the first rebuild.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Rebuild loads the network, builds a new snapshot and publishes it. On failure the
// previous snapshot stays in effect.
func (s *Store) Rebuild(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("network load failed, keeping previous snapshot")
		return nil, fmt.Errorf("load network: %w", err)
	}

	snap, issues := Build(data, s.build)
	if prev := s.current.Load(); prev != nil {
		snap.Version = prev.Version + 1
	} else {
		snap.Version = 1
	}

	for _, is := range issues {
		s.logger.Warn().
			Str("kind", is.Kind).
			Str("ref", is.Ref).
			Msg(is.Message)
	}

	s.current.Store(snap)

	s.logger.Info().
		Int64("version", snap.Version).
		Int("stops", snap.StopCount()).
		Int("routes", len(snap.routeIDs)).
		Int("vehicles", len(snap.fleetNumbers)).
		Int("issues", len(issues)).
		Msg("network snapshot published")

	return snap, nil
}

func (s *Store) load(ctx context.Context) (*Data, error) {
	if s.executor == nil {
		return s.repo.LoadNetwork(ctx)
	}

	var data *Data
	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		d, err := s.repo.LoadNetwork(ctx)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	return data, err
}
