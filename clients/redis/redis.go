package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/lock"
	"github.com/artie-labs/warehouse/lib/retry"
)

var retryableNetworkErrors = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	io.EOF,
	syscall.ETIMEDOUT,
}

// IsRetryableError reports whether a Redis call failed for a transient reason.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	for _, retryableErr := range retryableNetworkErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := err.Error()
	for _, prefix := range []string{"BUSY", "TRYAGAIN", "LOADING", "CLUSTERDOWN", "MASTERDOWN"} {
		if strings.Contains(errMsg, prefix) {
			return true
		}
	}

	return false
}

// releaseScript deletes the key only if it still holds our token, so an expired lock that was picked up by another
// run is never released from under it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	pingAttempts    = 5
	pingJitterBase  = 250
	pingJitterMaxMs = 5000
)

type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

func newPingRetryConfig() retry.RetryConfig {
	return retry.NewRetryConfig(retry.NewRetryConfigArgs{
		JitterBaseMs:   pingJitterBase,
		JitterMaxMs:    pingJitterMaxMs,
		MaxAttempts:    pingAttempts,
		IsRetryableErr: IsRetryableError,
	})
}

// ping checks the connection, retrying while Redis is starting up or unreachable.
func ping(ctx context.Context, rdb pinger, retryCfg retry.RetryConfig) error {
	return retryCfg.WithRetries(ctx, func(attempt int, _ error) error {
		if attempt > 0 {
			slog.Warn("Retrying the Redis connection check", slog.Int("attempt", attempt))
		}
		return rdb.Ping(ctx).Err()
	})
}

type client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Locker is a single instance Redis lock, for destinations without advisory locks.
type Locker struct {
	client client
	ttl    time.Duration
}

func NewLocker(ctx context.Context, cfg config.Redis, ttl time.Duration) (*Locker, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := ping(ctx, rdb, newPingRetryConfig()); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Successfully connected to Redis", slog.String("addr", cfg.Addr), slog.Int("database", cfg.DB))
	return &Locker{client: rdb, ttl: ttl}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string) (lock.ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	if !ok {
		return nil, fmt.Errorf("%q: %w", key, lock.ErrNotAcquired)
	}

	slog.Debug("Acquired redis lock", slog.String("key", key), slog.Duration("ttl", l.ttl))
	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}

		if deleted == 0 {
			slog.Warn("Lock expired before it was released, the run took longer than the lock TTL",
				slog.String("key", key),
				slog.Duration("ttl", l.ttl),
			)
		}
		return nil
	}, nil
}
