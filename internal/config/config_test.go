package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/config"
	"github.com/citytransit/transitengine/internal/deviation"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.SourcePostgres, cfg.Network.Source)
	assert.Equal(t, 18.0, cfg.Network.SpeedsKmh["tram"])
	assert.Equal(t, 700.0, cfg.Planner.RadiusMeters)
	assert.Equal(t, 10*time.Minute, cfg.Deviation.StalenessWindow)
	assert.False(t, cfg.Tracking.Enabled())
	assert.False(t, cfg.PubSub.Enabled())
}

func TestParse_MergesOverDefaults(t *testing.T) {
	cfg := config.Default()
	yml := []byte(`
timezone: Europe/Kyiv
network:
  source: fixture
  fixturePath: testdata/network.json
  speeds:
    bus: 22
    minibus: 25
planner:
  radiusMeters: 500
  maxWalkMeters: 400
deviation:
  lateThresholdMin: 4
  stalenessWindow: 5m
`)

	require.NoError(t, config.Parse(yml, &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Europe/Kyiv", cfg.Timezone)
	assert.Equal(t, config.SourceFixture, cfg.Network.Source)
	assert.Equal(t, 22.0, cfg.Network.SpeedsKmh["bus"])
	assert.Equal(t, 25.0, cfg.Network.SpeedsKmh["minibus"])
	// Untouched keys keep their defaults.
	assert.Equal(t, 18.0, cfg.Network.SpeedsKmh["tram"])
	assert.Equal(t, 10, cfg.Planner.MaxResults)
	assert.Equal(t, 500.0, cfg.Planner.RadiusMeters)
	assert.Equal(t, 4.0, cfg.Deviation.LateThresholdMin)
	assert.Equal(t, 5*time.Minute, cfg.Deviation.StalenessWindow)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown source", func(c *config.Config) { c.Network.Source = "mongo" }},
		{"fixture without path", func(c *config.Config) { c.Network.Source = config.SourceFixture }},
		{"zero speed", func(c *config.Config) { c.Network.SpeedsKmh["bus"] = 0 }},
		{"radius above cap", func(c *config.Config) { c.Planner.RadiusMeters = 5000 }},
		{"late inside on-time band", func(c *config.Config) { c.Deviation.LateThresholdMin = 1 }},
		{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
		{"non-numeric port", func(c *config.Config) { c.HTTP.Port = "http" }},
		{"pubsub without subscription", func(c *config.Config) { c.PubSub.ProjectID = "proj" }},
		{"unknown trip matching", func(c *config.Config) { c.Deviation.TripMatching = "closest" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planner:\n  maxResults: 5\n"), 0o600))

	t.Setenv("ENGINE_CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ENGINE_TIMEZONE", "UTC")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("NETWORK_REBUILD_INTERVAL", "2m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Planner.MaxResults)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 2*time.Minute, cfg.Network.RebuildInterval)
	assert.True(t, cfg.Tracking.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("ENGINE_CONFIG_FILE", "")
	t.Setenv("DEVIATION_MONITOR_INTERVAL", "soon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("ENGINE_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestEngineConversions(t *testing.T) {
	cfg := config.Default()
	cfg.Network.SpeedsKmh["Minibus"] = 30
	cfg.Planner.MaxWalkMeters = 350

	opts := cfg.BuildOptions()
	assert.Equal(t, 30.0, opts.SpeedsKmh["minibus"])
	assert.Equal(t, 20.0, opts.DefaultSpeedKmh)

	pc := cfg.PlannerConfig(time.UTC, zerolog.Nop())
	assert.Equal(t, 350.0, pc.Defaults.MaxWalkMeters)
	assert.Equal(t, 3000.0, pc.MaxRadiusMeters)
	assert.Equal(t, time.UTC, pc.Location)

	dc := cfg.DeviationConfig(time.UTC, zerolog.Nop())
	assert.Equal(t, 2.0, dc.OnTimeBandMin)
	assert.Equal(t, 500.0, dc.MaxOffRouteMeters)
	assert.Equal(t, deviation.TripMatchLatest, dc.TripMatching)
	assert.NotNil(t, dc.Now)
}
