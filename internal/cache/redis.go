package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usageKeyPrefix = "speechgw:usage"
	usageTTL       = 48 * time.Hour
)

// DailyUsage is one API key's recognition volume for a UTC day.
type DailyUsage struct {
	Requests   int64
	AudioBytes int64
}

// UsageCounter keeps per-key daily counters in Redis. Keys expire after two
// days, so the store only ever holds today and yesterday.
type UsageCounter struct {
	client *redis.Client
	now    func() time.Time
}

func NewUsageCounter(client *redis.Client) *UsageCounter {
	return &UsageCounter{client: client, now: time.Now}
}

func usageKey(keyID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", usageKeyPrefix, day.UTC().Format("20060102"), keyID)
}

// Incr counts one recognition of audioBytes for keyID.
func (c *UsageCounter) Incr(ctx context.Context, keyID string, audioBytes int64) error {
	key := usageKey(keyID, c.now())

	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "requests", 1)
	pipe.HIncrBy(ctx, key, "audio_bytes", audioBytes)
	pipe.Expire(ctx, key, usageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr usage %s: %w", keyID, err)
	}
	return nil
}

// Get returns the counters for keyID on day. Missing counters are zero.
func (c *UsageCounter) Get(ctx context.Context, keyID string, day time.Time) (DailyUsage, error) {
	vals, err := c.client.HMGet(ctx, usageKey(keyID, day), "requests", "audio_bytes").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return DailyUsage{}, fmt.Errorf("get usage %s: %w", keyID, err)
	}

	var u DailyUsage
	if len(vals) == 2 {
		u.Requests = toInt64(vals[0])
		u.AudioBytes = toInt64(vals[1])
	}
	return u, nil
}

// Ping reports whether Redis is reachable.
func (c *UsageCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func toInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
