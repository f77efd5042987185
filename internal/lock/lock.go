// Package lock provides the short leases that keep scheduled sweeps from
// overlapping across the HTTP trigger, the in-process scheduler and replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lease
var ErrNotAcquired = errors.New("lease held by another process")

// ErrNotHeld is returned when releasing a lease that already expired or was
// taken over
var ErrNotHeld = errors.New("lease not held")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lease is a held lock
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases by name
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisLocker stores leases as Redis keys with a TTL
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a Redis backed locker. Keys are prefixed with prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := l.prefix + "lock:" + name
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// LocalLocker keeps leases in memory. It only guards a single process.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]localEntry
	now    func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{leases: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) TryAcquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.leases[name]; ok && now.Before(e.expires) {
		return nil, ErrNotAcquired
	}
	token := uuid.New().String()
	l.leases[name] = localEntry{token: token, expires: now.Add(ttl)}
	return &localLease{owner: l, name: name, token: token}, nil
}

type localLease struct {
	owner *LocalLocker
	name  string
	token string
}

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	e, ok := l.owner.leases[l.name]
	if !ok || e.token != l.token {
		return ErrNotHeld
	}
	delete(l.owner.leases, l.name)
	return nil
}
