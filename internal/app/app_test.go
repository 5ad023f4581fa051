package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/app"
	"github.com/citytransit/transitengine/internal/config"
	"github.com/citytransit/transitengine/internal/network"
)

func fixtureConfig() *config.Config {
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Network.Source = config.SourceFixture
	cfg.Network.FixturePath = "../network/testdata/network.json"
	return &cfg
}

func TestNew_FixtureSource(t *testing.T) {
	a, err := app.New(context.Background(), fixtureConfig(), app.Options{ConsumePositions: true}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pinger())
	assert.Equal(t, time.UTC, a.Location)
	assert.False(t, a.Service.Status().Ready)

	snap, err := a.Service.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.True(t, a.Service.Status().Ready)
	assert.Equal(t, 3, a.Service.Status().Stops)

	health := a.Registry.AllHealth()
	require.Len(t, health, 1)
	assert.Equal(t, "network-repository", health[0].Name)
}

func TestNew_MissingFixture(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Network.FixturePath = "testdata/missing.json"

	a, err := app.New(context.Background(), cfg, app.Options{}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Service.Rebuild(context.Background())
	require.Error(t, err)

	_, err = a.Store.Current()
	assert.ErrorIs(t, err, network.ErrNoSnapshot)
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := app.New(context.Background(), cfg, app.Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestPruneTracker_StopsOnCancel(t *testing.T) {
	a, err := app.New(context.Background(), fixtureConfig(), app.Options{}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.PruneTracker(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prune loop did not stop")
	}
}
