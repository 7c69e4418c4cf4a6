package core

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// setupTestRedis starts an in-process Redis and returns a namespaced client
// connected to it. Both are cleaned up when the test finishes.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(RedisClientOptions{
		RedisURL:  "redis://" + mr.Addr(),
		DB:        RedisDBReports,
		Namespace: "nextprop:test",
	})
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}
