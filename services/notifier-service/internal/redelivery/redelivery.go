package redelivery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter tracks delivery attempts per message so the requeue loop stays
// bounded. Keys expire on their own; a message that stops failing stops
// counting.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisCounter is shared by all notifier instances consuming the queue,
// so redeliveries are counted across the group.
type RedisCounter struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

var incrWithExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisCounter(rdb *redis.Client, ttl time.Duration) *RedisCounter {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCounter{rdb: rdb, ttl: ttl, prefix: "redeliver"}
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	res, err := incrWithExpireScript.Run(ctx, c.rdb, []string{c.prefix + ":" + key}, c.ttl.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}

// Guard decides whether a failed delivery may be requeued. After
// maxAttempts failures for one correlation id the message is dropped to
// the dead-letter queue instead. Counter errors fail open: a flaky
// counter must not turn transient handler failures into dead letters.
type Guard struct {
	counter     Counter
	maxAttempts int
	logger      *slog.Logger
}

func NewGuard(counter Counter, maxAttempts int, logger *slog.Logger) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Guard{counter: counter, maxAttempts: maxAttempts, logger: logger}
}

func (g *Guard) AllowRequeue(ctx context.Context, correlationID string) bool {
	if g.counter == nil || correlationID == "" {
		return true
	}

	attempts, err := g.counter.Incr(ctx, correlationID)
	if err != nil {
		g.logger.Warn("redelivery counter error", "err", err)
		return true
	}
	if attempts >= int64(g.maxAttempts) {
		g.logger.Warn("redelivery budget exhausted",
			"correlation_id", correlationID,
			"attempts", attempts,
		)
		return false
	}
	return true
}
