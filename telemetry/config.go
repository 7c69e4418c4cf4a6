package telemetry

import (
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
)

// Exporter provider names accepted in Config.Provider.
const (
	// ProviderOTLP exports traces over OTLP gRPC to a collector.
	ProviderOTLP = "otlp"
	// ProviderStdout pretty-prints traces to stdout for local development.
	ProviderStdout = "stdout"
)

// Config configures the telemetry system
type Config struct {
	// Basic settings
	Enabled     bool
	ServiceName string
	Endpoint    string
	Provider    string // "otlp" or "stdout"

	// Sampling configuration
	SamplingRate float64

	// Cardinality control
	CardinalityLimit  int
	CardinalityLimits map[string]int // Per-label limits

	// Circuit breaker configuration
	CircuitBreaker CircuitConfig
}

// Profile represents a pre-configured telemetry profile
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileStaging     Profile = "staging"
	ProfileProduction  Profile = "production"
)

// Profiles contains pre-configured telemetry profiles
var Profiles = map[Profile]Config{
	ProfileDevelopment: {
		Enabled:          true,
		Provider:         ProviderStdout,
		SamplingRate:     1.0,
		CardinalityLimit: 50000,
		CircuitBreaker: CircuitConfig{
			Enabled: false,
		},
	},
	ProfileStaging: {
		Enabled:          true,
		Provider:         ProviderOTLP,
		Endpoint:         "otel-collector.staging:4317",
		SamplingRate:     0.1,
		CardinalityLimit: 20000,
		CircuitBreaker: CircuitConfig{
			Enabled:      true,
			MaxFailures:  10,
			RecoveryTime: 15 * time.Second,
		},
	},
	ProfileProduction: {
		Enabled:          true,
		Provider:         ProviderOTLP,
		Endpoint:         "otel-collector.prod:4317", // Override with env var
		SamplingRate:     0.001,
		CardinalityLimit: 10000,
		CircuitBreaker: CircuitConfig{
			Enabled:      true,
			MaxFailures:  10,
			RecoveryTime: 30 * time.Second,
			HalfOpenMax:  5,
		},
		CardinalityLimits: map[string]int{
			"error_type": 50,
			"code":       100,
			"service":    100,
			"component":  50,
		},
	},
}

// UseProfile returns a configuration based on a profile name
func UseProfile(profile Profile) Config {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	// Default to development profile
	return Profiles[ProfileDevelopment]
}

// FromCoreConfig derives a telemetry configuration from the library's main
// configuration. This is the normal wiring path for services:
//
//	cfg, _ := core.NewConfig()
//	if cfg.Telemetry.Enabled {
//	    telemetry.Initialize(telemetry.FromCoreConfig(cfg))
//	}
//
// Development mode without an explicit endpoint selects the stdout exporter
// so local runs need no collector.
func FromCoreConfig(cfg *core.Config) Config {
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.ServiceName
	}

	provider := ProviderOTLP
	if cfg.Development.Enabled && cfg.Telemetry.Endpoint == "" {
		provider = ProviderStdout
	}

	base := UseProfile(ProfileProduction)
	if cfg.Development.Enabled {
		base = UseProfile(ProfileDevelopment)
	}

	base.Enabled = cfg.Telemetry.Enabled
	base.ServiceName = serviceName
	base.Provider = provider
	if cfg.Telemetry.Endpoint != "" {
		base.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.SamplingRate > 0 {
		base.SamplingRate = cfg.Telemetry.SamplingRate
	}
	return base
}

// WithOverrides applies overrides to a config
func (c Config) WithOverrides(overrides Config) Config {
	// Override non-zero values
	if overrides.Enabled {
		c.Enabled = overrides.Enabled
	}
	if overrides.ServiceName != "" {
		c.ServiceName = overrides.ServiceName
	}
	if overrides.Endpoint != "" {
		c.Endpoint = overrides.Endpoint
	}
	if overrides.Provider != "" {
		c.Provider = overrides.Provider
	}
	if overrides.SamplingRate > 0 {
		c.SamplingRate = overrides.SamplingRate
	}
	if overrides.CardinalityLimit > 0 {
		c.CardinalityLimit = overrides.CardinalityLimit
	}
	if overrides.CardinalityLimits != nil {
		c.CardinalityLimits = overrides.CardinalityLimits
	}
	if overrides.CircuitBreaker.Enabled {
		c.CircuitBreaker = overrides.CircuitBreaker
	}
	return c
}
