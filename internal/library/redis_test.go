package library

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// TestRedisStoreContract runs against a live server when TEED_TEST_REDIS_ADDR is set.
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("TEED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEED_TEST_REDIS_ADDR not set")
	}
	prefix := fmt.Sprintf("teed:test:%d:", time.Now().UnixNano())
	store, err := OpenRedis(context.Background(), RedisOptions{Addr: addr, KeyPrefix: prefix}, nil)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.Clear(context.Background())
		_ = store.Close()
	})
	exerciseStore(t, store)
}
