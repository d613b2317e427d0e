// Package rate enforces a per-user send rate using a Redis-backed
// token bucket, so the HTTP surface can throttle before a message ever
// reaches the store or queue.
package rate

import (
	"context"
	"fmt"
	"time"

	"chatdispatch/internal/db"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	redis  *db.RedisDB
	logger *zap.Logger
	rps    int
	burst  int
}

func NewLimiter(redisDB *db.RedisDB, logger *zap.Logger, rps, burst int) *Limiter {
	return &Limiter{redis: redisDB, logger: logger, rps: rps, burst: burst}
}

// Allow reports whether userID may send another message right now.
// Tokens refill at rps per second up to burst; a bucket below one
// token returns false with the duration until it would next allow.
func (l *Limiter) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	key := fmt.Sprintf("rate_limit:%s", userID)
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	currentTokensStr, err := l.redis.Get(ctx, key).Result()
	currentTokens := l.burst
	lastRefill := windowStart

	if err == nil {
		var lastRefillUnix int64
		fmt.Sscanf(currentTokensStr, "%d:%d", &currentTokens, &lastRefillUnix)
		lastRefill = time.Unix(lastRefillUnix, 0)
	} else if err != redis.Nil {
		return false, 0, fmt.Errorf("rate: read bucket: %w", err)
	}

	elapsed := windowStart.Sub(lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * l.rps
	if tokensToAdd > 0 {
		currentTokens = min(currentTokens+tokensToAdd, l.burst)
		lastRefill = windowStart
	}

	if currentTokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		return false, retryAfter, nil
	}

	currentTokens--
	newValue := fmt.Sprintf("%d:%d", currentTokens, lastRefill.Unix())
	if err := l.redis.Set(ctx, key, newValue, time.Minute).Err(); err != nil {
		return false, 0, fmt.Errorf("rate: write bucket: %w", err)
	}

	return true, 0, nil
}

// Reset clears the rate limit bucket for a user.
func (l *Limiter) Reset(ctx context.Context, userID string) error {
	key := fmt.Sprintf("rate_limit:%s", userID)
	return l.redis.Del(ctx, key).Err()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
