package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const attemptKeyPrefix = "login_attempts:"

// LoginLimiter counts failed login attempts per username and client address
// in Redis and blocks further attempts once the limit is hit within the
// window. Without a Redis client, or when Redis errors, the limiter fails
// open: a broken counter must not lock everyone out.
type LoginLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	logger *zap.Logger
}

// NewLoginLimiter constructs a limiter. client may be nil.
func NewLoginLimiter(client *redis.Client, max int, window time.Duration, logger *zap.Logger) *LoginLimiter {
	return &LoginLimiter{client: client, max: max, window: window, logger: logger}
}

// Allow reports whether another attempt for this username/address pair is
// permitted.
func (l *LoginLimiter) Allow(ctx context.Context, username, clientIP string) bool {
	if l == nil || l.client == nil || l.max <= 0 {
		return true
	}

	count, err := l.client.Get(ctx, l.key(username, clientIP)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("login limiter read failed", zap.Error(err))
		}
		return true
	}
	return count < l.max
}

// RecordFailure bumps the failure counter, starting the window on the first
// failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username, clientIP string) {
	if l == nil || l.client == nil {
		return
	}

	key := l.key(username, clientIP)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("login limiter increment failed", zap.Error(err))
		return
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("login limiter expire failed", zap.Error(err))
		}
	}
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username, clientIP string) {
	if l == nil || l.client == nil {
		return
	}
	if err := l.client.Del(ctx, l.key(username, clientIP)).Err(); err != nil {
		l.logger.Warn("login limiter reset failed", zap.Error(err))
	}
}

func (l *LoginLimiter) key(username, clientIP string) string {
	return attemptKeyPrefix + username + ":" + clientIP
}
