//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

// counterClient backs the limiter with an in-memory counter.
type counterClient struct {
	RedisClient
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newCounterClient() *counterClient {
	return &counterClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (c *counterClient) Incr(ctx context.Context, key string) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *counterClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	c.expires[key] = expiration
	return nil
}

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit and denies the next", func(t *testing.T) {
		client := newCounterClient()
		limiter := NewRateLimiter(client)
		key := ChatSendKey("user-1")

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, key, 3, time.Minute)
			if err != nil {
				t.Fatalf("Allow() returned error on request %d: %v", i+1, err)
			}
			if !ok {
				t.Fatalf("request %d should be allowed", i+1)
			}
		}

		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow() returned error: %v", err)
		}
		if ok {
			t.Error("request over the limit should be denied")
		}
	})

	t.Run("sets the window expiry on the first hit only", func(t *testing.T) {
		client := newCounterClient()
		limiter := NewRateLimiter(client)
		key := ChatSendKey("user-2")

		if _, err := limiter.Allow(ctx, key, 5, time.Minute); err != nil {
			t.Fatalf("Allow() returned error: %v", err)
		}
		if client.expires[key] != time.Minute {
			t.Errorf("expected expiry of 1m on first hit, got %v", client.expires[key])
		}

		client.expires[key] = 0
		if _, err := limiter.Allow(ctx, key, 5, time.Minute); err != nil {
			t.Fatalf("Allow() returned error: %v", err)
		}
		if client.expires[key] != 0 {
			t.Error("expiry should not be reset after the first hit")
		}
	})

	t.Run("keys are scoped per user", func(t *testing.T) {
		client := newCounterClient()
		limiter := NewRateLimiter(client)

		if ok, _ := limiter.Allow(ctx, ChatSendKey("a"), 1, time.Minute); !ok {
			t.Fatal("first request for user a should be allowed")
		}
		if ok, _ := limiter.Allow(ctx, ChatSendKey("b"), 1, time.Minute); !ok {
			t.Error("user b must not be throttled by user a's traffic")
		}
	})

	t.Run("propagates backend errors", func(t *testing.T) {
		client := newCounterClient()
		client.incrErr = errors.New("connection refused")
		limiter := NewRateLimiter(client)

		ok, err := limiter.Allow(ctx, ChatSendKey("c"), 1, time.Minute)
		if err == nil {
			t.Fatal("expected an error from the backend")
		}
		if ok {
			t.Error("a failed check must not report allowed")
		}
	})
}
