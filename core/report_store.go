package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// reportIndexKey is the sorted set holding report ids scored by save time.
// It backs the recent-reports listing and is trimmed on every save.
const reportIndexKey = "index"

// recordReportMetric counts a persistence outcome through the metrics
// bridge. A no-op until telemetry installs a registry.
func recordReportMetric(name, provider string) {
	if registry := GetGlobalMetricsRegistry(); registry != nil {
		registry.Counter(name, "provider", provider)
	}
}

// MemoryReportStore keeps error reports in process memory. Reports expire
// after the configured TTL and the store is bounded, so it is suitable for
// development and single-instance deployments.
type MemoryReportStore struct {
	store *MemoryStore
	ttl   time.Duration
}

// NewMemoryReportStore creates a bounded in-memory report store.
func NewMemoryReportStore(maxSize int, ttl time.Duration, logger Logger) *MemoryReportStore {
	store := NewMemoryStore(maxSize)
	store.SetLogger(createComponentLogger(logger, "resilience/reports"))
	return &MemoryReportStore{
		store: store,
		ttl:   ttl,
	}
}

// SaveReport stores a report under its opaque id.
func (m *MemoryReportStore) SaveReport(ctx context.Context, id string, report *ErrorReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		recordReportMetric("nextprop.reports.save_failures", "inmemory")
		return fmt.Errorf("failed to encode report %s: %w", id, err)
	}
	if err := m.store.Set(ctx, id, string(data), m.ttl); err != nil {
		recordReportMetric("nextprop.reports.save_failures", "inmemory")
		return err
	}
	recordReportMetric("nextprop.reports.saved", "inmemory")
	return nil
}

// GetReport retrieves a stored report. Returns ErrReportNotFound for
// unknown or expired ids.
func (m *MemoryReportStore) GetReport(ctx context.Context, id string) (*ErrorReport, error) {
	data, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
	}

	var report ErrorReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// RedisReportStore persists error reports in Redis so they survive process
// restarts and are visible to every instance behind a load balancer. A
// sorted-set index keyed by save time supports listing recent reports.
type RedisReportStore struct {
	client *RedisClient
	ttl    time.Duration
	logger Logger
}

// NewRedisReportStore creates a report store backed by Redis. The client
// connects to the report DB with the configured namespace.
func NewRedisReportStore(cfg *Config, logger Logger) (*RedisReportStore, error) {
	componentLogger := createComponentLogger(logger, "resilience/reports")

	client, err := NewRedisClient(RedisClientOptions{
		RedisURL:  cfg.Redis.URL,
		DB:        RedisDBReports,
		Namespace: cfg.Redis.Namespace + ":reports",
		Logger:    componentLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create report store client: %w", err)
	}

	return &RedisReportStore{
		client: client,
		ttl:    cfg.Reports.TTL,
		logger: componentLogger,
	}, nil
}

// SaveReport stores the report and registers it in the timeline index.
// Index entries older than the TTL are trimmed on each save.
func (s *RedisReportStore) SaveReport(ctx context.Context, id string, report *ErrorReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		recordReportMetric("nextprop.reports.save_failures", "redis")
		return fmt.Errorf("failed to encode report %s: %w", id, err)
	}

	if err := s.client.Set(ctx, id, string(data), s.ttl); err != nil {
		recordReportMetric("nextprop.reports.save_failures", "redis")
		return fmt.Errorf("failed to save report %s: %w", id, err)
	}
	recordReportMetric("nextprop.reports.saved", "redis")

	now := time.Now()
	if err := s.client.ZAdd(ctx, reportIndexKey, &redis.Z{
		Score:  float64(now.Unix()),
		Member: id,
	}); err != nil {
		// The report itself is saved, a stale index only degrades listing
		s.logger.WarnWithContext(ctx, "Failed to index report", map[string]interface{}{
			"operation": "report_index",
			"report_id": id,
			"error":     err,
		})
		return nil
	}

	cutoff := now.Add(-s.ttl).Unix()
	_ = s.client.ZRemRangeByScore(ctx, reportIndexKey, "-inf", fmt.Sprintf("%d", cutoff))
	return nil
}

// GetReport retrieves a stored report. Returns ErrReportNotFound for
// unknown or expired ids.
func (s *RedisReportStore) GetReport(ctx context.Context, id string) (*ErrorReport, error) {
	data, err := s.client.Get(ctx, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var report ErrorReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// ListRecent returns up to n report ids, newest first. Ids whose reports
// have already expired may still appear until the next index trim.
func (s *RedisReportStore) ListRecent(ctx context.Context, n int) ([]string, error) {
	if n < 1 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, reportIndexKey, 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent reports: %w", err)
	}
	return ids, nil
}

// Close releases the underlying Redis connection.
func (s *RedisReportStore) Close() error {
	return s.client.Close()
}

// NewReportStore builds the report store selected by the configuration.
func NewReportStore(cfg *Config, logger Logger) (ReportStore, error) {
	switch cfg.Reports.Provider {
	case "redis":
		return NewRedisReportStore(cfg, logger)
	case "inmemory":
		return NewMemoryReportStore(cfg.Reports.MaxSize, cfg.Reports.TTL, logger), nil
	default:
		return nil, NewConfigurationError("reports.provider",
			fmt.Sprintf("unknown report store provider: %s", cfg.Reports.Provider))
	}
}
