package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"pdfbot/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port, DB: db}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestUpdateGuardFirstSeen(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	id := int(time.Now().UnixNano() % 1_000_000_000)
	defer client.Del(ctx, updateKeyPrefix+strconv.Itoa(id))

	guard := NewUpdateGuard(client, time.Minute)
	first, err := guard.FirstSeen(ctx, id)
	if err != nil || !first {
		t.Fatalf("first delivery should be new: %v %v", first, err)
	}
	again, err := guard.FirstSeen(ctx, id)
	if err != nil || again {
		t.Fatalf("redelivery should be detected: %v %v", again, err)
	}
	ttl, err := client.TTL(ctx, updateKeyPrefix+strconv.Itoa(id))
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v: %v", ttl, err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.SetNX(context.Background(), "k", 1, time.Second); err == nil {
		t.Fatalf("nil client must fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing nil client: %v", err)
	}
}
