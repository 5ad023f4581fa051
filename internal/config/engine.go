package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/planner"
)

// BuildOptions converts network settings into snapshot build options.
func (c *Config) BuildOptions() network.BuildOptions {
	speeds := make(map[string]float64, len(c.Network.SpeedsKmh))
	for name, kmh := range c.Network.SpeedsKmh {
		speeds[strings.ToLower(name)] = kmh
	}
	return network.BuildOptions{
		SpeedsKmh:       speeds,
		DefaultSpeedKmh: c.Network.DefaultSpeedKmh,
	}
}

// PlannerConfig converts planner settings for use in loc.
func (c *Config) PlannerConfig(loc *time.Location, logger zerolog.Logger) planner.Config {
	return planner.Config{
		Defaults: planner.Options{
			RadiusMeters:       c.Planner.RadiusMeters,
			MaxResults:         c.Planner.MaxResults,
			MaxFirstLegMinutes: c.Planner.MaxFirstLegMinutes,
			MaxWalkMeters:      c.Planner.MaxWalkMeters,
			WalkingSpeedKmh:    c.Planner.WalkingSpeedKmh,
		},
		MaxRadiusMeters: c.Planner.MaxRadiusCapMeters,
		MaxResultsCap:   c.Planner.MaxResultsCap,
		Location:        loc,
		Now:             time.Now,
		Logger:          logger,
	}
}

// DeviationConfig converts adherence thresholds for use in loc.
func (c *Config) DeviationConfig(loc *time.Location, logger zerolog.Logger) deviation.Config {
	return deviation.Config{
		OnTimeBandMin:     c.Deviation.OnTimeBandMin,
		LateThresholdMin:  c.Deviation.LateThresholdMin,
		StalenessWindow:   c.Deviation.StalenessWindow,
		MaxOffRouteMeters: c.Deviation.MaxOffRouteMeters,
		TripMatching:      deviation.TripMatching(c.Deviation.TripMatching),
		Location:          loc,
		Now:               time.Now,
		Logger:            logger,
	}
}
