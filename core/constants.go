package core

import "time"

// Environment Variables
const (
	// Common Configuration
	EnvRedisURL    = "REDIS_URL"             // Redis connection URL
	EnvServiceName = "NEXTPROP_SERVICE_NAME" // Service name for logs and reports
	EnvDevMode     = "NEXTPROP_DEV_MODE"     // Development mode flag
)

// Resilience Defaults
const (
	// DefaultCircuitBreakerThreshold is the number of consecutive failures
	// before a circuit opens
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerTimeout is how long an open circuit waits before
	// allowing a recovery trial
	DefaultCircuitBreakerTimeout = 60 * time.Second

	// DefaultHalfOpenRequests is how many successful trials a half-open
	// circuit requires before closing
	DefaultHalfOpenRequests = 1

	// DefaultMaxRetries is the number of retries after the initial attempt
	DefaultMaxRetries = 3

	// DefaultBackoffFactor is the base multiplier for exponential backoff
	DefaultBackoffFactor = 1.0

	// DefaultMaxRetryDelay caps the delay between retry attempts
	DefaultMaxRetryDelay = 30 * time.Second

	// DefaultSlowThreshold is the duration above which operations are
	// logged as slow
	DefaultSlowThreshold = 3 * time.Second
)

// Report Storage Defaults
const (
	// DefaultReportPrefix is the default key prefix for error reports in Redis
	// Format: <prefix><report-id>
	// Example: nextprop:reports:550e8400-e29b-41d4-a716-446655440000
	DefaultReportPrefix = "nextprop:reports:"

	// DefaultReportTTL is the default retention for stored error reports.
	// Reports are diagnostic artifacts, 24 hours is a reasonable default
	DefaultReportTTL = 24 * time.Hour
)
