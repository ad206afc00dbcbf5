package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rent-predictor/utils"
)

// NopLocker grants every request immediately. Use it when builds are known
// to run from a single process.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a lease-based mutex shared by every process that talks to
// the same Redis instance. A holder renews its lease every third of the TTL
// until it releases, so a long build keeps the lock. If the holder dies the
// lease lapses after at most one TTL.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *utils.Logger
}

// NewRedisLocker connects to redisURL and verifies it answers a ping.
func NewRedisLocker(ctx context.Context, redisURL string, logger *utils.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisLocker{
		client: client,
		prefix: "rent-predictor:build:",
		ttl:    30 * time.Minute,
		poll:   500 * time.Millisecond,
		logger: logger,
	}, nil
}

// Acquire blocks until the lock for key is held or ctx is done. The lease is
// renewed in the background until release is called.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		if l.logger != nil {
			l.logger.Debug("[lock] %s is held elsewhere, waiting", lockKey)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: acquire %s: %w", lockKey, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(lockKey, token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
		})
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{lockKey}, token).Err(); err != nil && l.logger != nil {
			l.logger.Warn("[lock] release %s failed: %v", lockKey, err)
		}
	}
	return release, nil
}

func (l *RedisLocker) renew(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		held, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			if l.logger != nil {
				l.logger.Warn("[lock] renew %s failed: %v", lockKey, err)
			}
		case held == 0:
			if l.logger != nil {
				l.logger.Warn("[lock] lease on %s was lost", lockKey)
			}
			return
		}
	}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
