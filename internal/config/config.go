// Package config loads engine configuration from the environment and an optional
// YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Network sources.
const (
	SourcePostgres = "postgres"
	SourceFixture  = "fixture"
)

// Config is the complete engine configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	Timezone  string          `yaml:"timezone" validate:"required"`
	Network   NetworkConfig   `yaml:"network"`
	Planner   PlannerConfig   `yaml:"planner"`
	Deviation DeviationConfig `yaml:"deviation"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServiceConfig identifies the running binary.
type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" validate:"required"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`

	// PlanRequestsPerMinute limits journey planning per client IP.
	PlanRequestsPerMinute int `yaml:"planRequestsPerMinute" validate:"gt=0"`
}

// NetworkConfig selects where the network comes from and how it is derived.
type NetworkConfig struct {
	Source          string             `yaml:"source" validate:"oneof=postgres fixture"`
	FixturePath     string             `yaml:"fixturePath" validate:"required_if=Source fixture"`
	SpeedsKmh       map[string]float64 `yaml:"speeds" validate:"dive,keys,required,endkeys,gt=0"`
	DefaultSpeedKmh float64            `yaml:"defaultSpeedKmh" validate:"gt=0"`

	// RebuildInterval is the fallback periodic rebuild. Zero disables it.
	RebuildInterval time.Duration `yaml:"rebuildInterval" validate:"gte=0"`
}

// PlannerConfig holds planning defaults and hard caps.
type PlannerConfig struct {
	RadiusMeters       float64 `yaml:"radiusMeters" validate:"gt=0"`
	MaxResults         int     `yaml:"maxResults" validate:"gt=0"`
	MaxFirstLegMinutes float64 `yaml:"maxFirstLegMinutes" validate:"gt=0"`
	MaxWalkMeters      float64 `yaml:"maxWalkMeters" validate:"gte=0"`
	WalkingSpeedKmh    float64 `yaml:"walkingSpeedKmh" validate:"gt=0"`
	MaxRadiusCapMeters float64 `yaml:"maxRadiusCapMeters" validate:"gtefield=RadiusMeters"`
	MaxResultsCap      int     `yaml:"maxResultsCap" validate:"gtefield=MaxResults"`
}

// DeviationConfig holds adherence thresholds.
type DeviationConfig struct {
	OnTimeBandMin     float64       `yaml:"onTimeBandMin" validate:"gte=0"`
	LateThresholdMin  float64       `yaml:"lateThresholdMin" validate:"gtefield=OnTimeBandMin"`
	StalenessWindow   time.Duration `yaml:"stalenessWindow" validate:"gt=0"`
	MaxOffRouteMeters float64       `yaml:"maxOffRouteMeters" validate:"gt=0"`

	// TripMatching is "latest" (most recent departure) or "nearest_progress".
	TripMatching string `yaml:"tripMatching" validate:"oneof=latest nearest_progress"`

	// MonitorInterval is how often the dispatcher board is re-evaluated.
	MonitorInterval time.Duration `yaml:"monitorInterval" validate:"gt=0"`
}

// TrackingConfig configures live GPS ingest.
type TrackingConfig struct {
	NATSURL string `yaml:"natsUrl"`
	Subject string `yaml:"subject" validate:"required"`
}

// Enabled reports whether NATS ingest is configured.
func (c TrackingConfig) Enabled() bool {
	return c.NATSURL != ""
}

// PubSubConfig configures rebuild notifications.
type PubSubConfig struct {
	ProjectID    string `yaml:"projectId"`
	Subscription string `yaml:"subscription" validate:"required_with=ProjectID"`
}

// Enabled reports whether the Pub/Sub consumer is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != ""
}

// AuthConfig configures dispatcher token verification.
type AuthConfig struct {
	SigningKey     string `yaml:"-"`
	Issuer         string `yaml:"issuer"`
	DispatcherRole string `yaml:"dispatcherRole" validate:"required"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "transitengine",
			Version:     "0.1.0",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:                  "8080",
			ReadTimeout:           15 * time.Second,
			WriteTimeout:          15 * time.Second,
			IdleTimeout:           60 * time.Second,
			ShutdownTimeout:       30 * time.Second,
			PlanRequestsPerMinute: 60,
		},
		Timezone: "Local",
		Network: NetworkConfig{
			Source: SourcePostgres,
			SpeedsKmh: map[string]float64{
				"bus":        20,
				"tram":       18,
				"trolleybus": 18,
			},
			DefaultSpeedKmh: 20,
			RebuildInterval: 15 * time.Minute,
		},
		Planner: PlannerConfig{
			RadiusMeters:       700,
			MaxResults:         10,
			MaxFirstLegMinutes: 45,
			WalkingSpeedKmh:    4.5,
			MaxRadiusCapMeters: 3000,
			MaxResultsCap:      50,
		},
		Deviation: DeviationConfig{
			OnTimeBandMin:     2,
			LateThresholdMin:  5,
			StalenessWindow:   10 * time.Minute,
			MaxOffRouteMeters: 500,
			TripMatching:      "latest",
			MonitorInterval:   time.Minute,
		},
		Tracking: TrackingConfig{
			Subject: "vehicles.>",
		},
		Auth: AuthConfig{
			Issuer:         "citytransit",
			DispatcherRole: "dispatcher",
		},
	}
}

// Load reads .env (if present), the YAML file named by ENGINE_CONFIG_FILE (if set),
// then environment overrides, and validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("ENGINE_CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile merges the YAML file at path into cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data, cfg)
}

// Parse merges YAML data into cfg.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// Validate checks field constraints and that the time zone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// Location resolves the configured service time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Service.Environment == "production"
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Service.Version, "APP_VERSION")
	setString(&cfg.Service.Environment, "APP_ENV")
	setString(&cfg.HTTP.Port, "APP_PORT")
	setString(&cfg.Timezone, "ENGINE_TIMEZONE")
	setString(&cfg.Network.Source, "NETWORK_SOURCE")
	setString(&cfg.Network.FixturePath, "NETWORK_FIXTURE_PATH")
	setString(&cfg.Tracking.NATSURL, "NATS_URL")
	setString(&cfg.Tracking.Subject, "NATS_SUBJECT")
	setString(&cfg.PubSub.ProjectID, "PUBSUB_PROJECT_ID")
	setString(&cfg.PubSub.Subscription, "PUBSUB_SUBSCRIPTION")
	setString(&cfg.Auth.SigningKey, "JWT_SIGNING_KEY")
	setString(&cfg.Auth.Issuer, "JWT_ISSUER")

	var errs []error
	errs = append(errs,
		setDuration(&cfg.Network.RebuildInterval, "NETWORK_REBUILD_INTERVAL"),
		setDuration(&cfg.Deviation.MonitorInterval, "DEVIATION_MONITOR_INTERVAL"),
		setDuration(&cfg.Deviation.StalenessWindow, "DEVIATION_STALENESS_WINDOW"),
		setInt(&cfg.HTTP.PlanRequestsPerMinute, "PLAN_RATE_LIMIT_PER_MINUTE"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}
