package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "reflex:lock:"

// releaseScript deletes the key only when it still holds the caller's owner id.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared redis instance. Keys expire after
// the stale threshold, which gives the same reclaim behaviour as FileLocker.
type RedisLocker struct {
	client *redis.Client
	opts   Options
	logger *slog.Logger
}

// NewRedisLocker connects to redisURL (redis://host:port/db).
func NewRedisLocker(ctx context.Context, redisURL string, opts Options, logger *slog.Logger) (*RedisLocker, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger,
	}, nil
}

func (l *RedisLocker) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Acquire retries SET NX until it succeeds or the timeout elapses.
func (l *RedisLocker) Acquire(ctx context.Context, sessionID string) bool {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, l.key(sessionID), l.opts.Owner, l.opts.Stale).Result()
		if err != nil && ctx.Err() == nil {
			l.logger.Warn("redis lock attempt failed", "session", sessionID, "error", err)
			return false
		}
		if ok {
			l.logger.Debug("lock acquired", "session", sessionID, "owner", l.opts.Owner, "backend", "redis")
			return true
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("lock not acquired", "session", sessionID, "backend", "redis", "error", ErrLockTimeout)
			return false
		case <-ticker.C:
		}
	}
}

// Release deletes the key if this locker still owns it.
func (l *RedisLocker) Release(ctx context.Context, sessionID string) {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(sessionID)}, l.opts.Owner).Int()
	if err != nil {
		l.logger.Warn("redis lock release failed", "session", sessionID, "error", err)
		return
	}
	if n == 0 {
		l.logger.Debug("not releasing foreign lock", "session", sessionID, "backend", "redis")
		return
	}
	l.logger.Debug("lock released", "session", sessionID, "backend", "redis")
}

// Close closes the redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
