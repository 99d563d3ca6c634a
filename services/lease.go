package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another dialogue already owns the session.
var ErrLeaseHeld = errors.New("session already has an active dialogue")

const (
	DefaultLeaseTTL = 30 * time.Second
	leaseKeyPrefix  = "dialogue:lease:"
)

// SessionLease grants at most one live dialogue per session.
type SessionLease interface {
	Acquire(ctx context.Context, sessionID, holder string) (release func(), err error)
}

// MemoryLease is a process-local SessionLease
type MemoryLease struct {
	mu      sync.Mutex
	holders map[string]string
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{holders: make(map[string]string)}
}

func (l *MemoryLease) Acquire(ctx context.Context, sessionID, holder string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.holders[sessionID]; held {
		return nil, ErrLeaseHeld
	}
	l.holders[sessionID] = holder

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.holders[sessionID] == holder {
				delete(l.holders, sessionID)
			}
		})
	}, nil
}

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLease shares leases across server instances. A held lease is refreshed
// every third of its TTL until released.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLease(client *redis.Client, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLease{client: client, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context, sessionID, holder string) (func(), error) {
	key := leaseKeyPrefix + sessionID
	ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	stop := make(chan struct{})
	go l.keepAlive(key, holder, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, holder).Err(); err != nil {
				slog.Error("Failed to release lease", "error", err, "session_key", key)
			}
		})
	}, nil
}

func (l *RedisLease) keepAlive(key, holder string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			res, err := refreshScript.Run(ctx, l.client, []string{key}, holder, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				slog.Error("Failed to refresh lease", "error", err, "session_key", key)
				continue
			}
			if res == 0 {
				slog.Warn("Lease lost before release", "session_key", key)
				return
			}
		}
	}
}
