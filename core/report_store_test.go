package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupRedisReportStore starts a fake Redis and builds a report store
// against it with a short TTL.
func setupRedisReportStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisReportStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.Redis.Namespace = "nextprop:test"
	cfg.Reports.TTL = ttl

	store, err := NewRedisReportStore(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create report store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestMemoryReportStoreRoundTrip(t *testing.T) {
	store := NewMemoryReportStore(100, time.Hour, nil)
	ctx := context.Background()

	appErr := NewDatabaseError("insert", "properties", "", errors.New("deadlock"))
	report := appErr.Report()

	if err := store.SaveReport(ctx, appErr.ID, report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	loaded, err := store.GetReport(ctx, appErr.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if loaded.ErrorType != "DATABASE_ERROR" {
		t.Errorf("ErrorType = %s", loaded.ErrorType)
	}
	if loaded.Code != "DATABASE_ERROR" {
		t.Errorf("Code = %s", loaded.Code)
	}
	if loaded.Details["table"] != "properties" {
		t.Errorf("table detail = %v", loaded.Details["table"])
	}
	if loaded.Timestamp != report.Timestamp {
		t.Errorf("Timestamp changed across storage: %s != %s", loaded.Timestamp, report.Timestamp)
	}
}

func TestMemoryReportStoreNotFound(t *testing.T) {
	store := NewMemoryReportStore(100, time.Hour, nil)

	_, err := store.GetReport(context.Background(), "no-such-id")
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("error = %v, want ErrReportNotFound", err)
	}
}

func TestMemoryReportStoreExpiry(t *testing.T) {
	store := NewMemoryReportStore(100, 20*time.Millisecond, nil)
	ctx := context.Background()

	appErr := NewCacheError("get", "k", nil)
	if err := store.SaveReport(ctx, appErr.ID, appErr.Report()); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	_, err := store.GetReport(ctx, appErr.ID)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("error after TTL = %v, want ErrReportNotFound", err)
	}
}

func TestRedisReportStoreRoundTrip(t *testing.T) {
	_, store := setupRedisReportStore(t, time.Hour)
	ctx := context.Background()

	appErr := NewExternalAPIError("geocoder", "/v1/geocode", 503, "overloaded", nil)
	rc := &RequestContext{URL: "/api/properties", Method: "POST", UserID: "user-3"}
	report := appErr.WithRequestContext(rc).Report()

	if err := store.SaveReport(ctx, appErr.ID, report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	loaded, err := store.GetReport(ctx, appErr.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if loaded.ErrorType != "EXTERNAL_API_ERROR" {
		t.Errorf("ErrorType = %s", loaded.ErrorType)
	}
	if loaded.RequestContext == nil || loaded.RequestContext.UserID != "user-3" {
		t.Error("request context should survive the round trip")
	}
	if loaded.Details["api_name"] != "geocoder" {
		t.Errorf("api_name detail = %v", loaded.Details["api_name"])
	}
}

func TestRedisReportStoreNotFound(t *testing.T) {
	_, store := setupRedisReportStore(t, time.Hour)

	_, err := store.GetReport(context.Background(), "no-such-id")
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("error = %v, want ErrReportNotFound", err)
	}
}

func TestRedisReportStoreTTL(t *testing.T) {
	mr, store := setupRedisReportStore(t, time.Minute)
	ctx := context.Background()

	appErr := NewCacheError("get", "k", nil)
	if err := store.SaveReport(ctx, appErr.ID, appErr.Report()); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := store.GetReport(ctx, appErr.ID)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("error after TTL = %v, want ErrReportNotFound", err)
	}
}

func TestRedisReportStoreListRecent(t *testing.T) {
	_, store := setupRedisReportStore(t, time.Hour)
	ctx := context.Background()

	// Seed the index with explicit scores so ordering is deterministic
	base := time.Now().Unix()
	seed := []*redis.Z{
		{Score: float64(base - 300), Member: "r-old"},
		{Score: float64(base - 60), Member: "r-mid"},
		{Score: float64(base), Member: "r-new"},
	}
	if err := store.client.ZAdd(ctx, reportIndexKey, seed...); err != nil {
		t.Fatalf("seeding index failed: %v", err)
	}

	recent, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("ListRecent returned %d ids, want 2", len(recent))
	}
	if recent[0] != "r-new" || recent[1] != "r-mid" {
		t.Errorf("ListRecent = %v, want newest first", recent)
	}

	// Zero and negative limits are empty, not errors
	none, err := store.ListRecent(ctx, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("ListRecent(0) = %v, %v", none, err)
	}
}

func TestRedisReportStoreIndexTrim(t *testing.T) {
	_, store := setupRedisReportStore(t, time.Minute)
	ctx := context.Background()

	// An entry far older than the TTL window
	ancient := &redis.Z{Score: float64(time.Now().Add(-time.Hour).Unix()), Member: "r-ancient"}
	if err := store.client.ZAdd(ctx, reportIndexKey, ancient); err != nil {
		t.Fatalf("seeding index failed: %v", err)
	}

	appErr := NewCacheError("get", "k", nil)
	if err := store.SaveReport(ctx, appErr.ID, appErr.Report()); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	ids, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("index has %d entries, want 1 after trim", len(ids))
	}
	if ids[0] != appErr.ID {
		t.Errorf("surviving id = %s, want %s", ids[0], appErr.ID)
	}
}

func TestNewReportStoreFactory(t *testing.T) {
	t.Run("inmemory provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Reports.Provider = "inmemory"

		store, err := NewReportStore(cfg, nil)
		if err != nil {
			t.Fatalf("NewReportStore failed: %v", err)
		}
		if _, ok := store.(*MemoryReportStore); !ok {
			t.Errorf("store has type %T, want *MemoryReportStore", store)
		}
	})

	t.Run("redis provider", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("failed to start miniredis: %v", err)
		}
		t.Cleanup(mr.Close)

		cfg := DefaultConfig()
		cfg.Reports.Provider = "redis"
		cfg.Redis.URL = "redis://" + mr.Addr()

		store, err := NewReportStore(cfg, nil)
		if err != nil {
			t.Fatalf("NewReportStore failed: %v", err)
		}
		rs, ok := store.(*RedisReportStore)
		if !ok {
			t.Fatalf("store has type %T, want *RedisReportStore", store)
		}
		_ = rs.Close()
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Reports.Provider = "carrier-pigeon"

		_, err := NewReportStore(cfg, nil)
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("error = %v, want ErrInvalidConfiguration", err)
		}
	})
}
