package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"visaconnect/internal/domain/service"
	"visaconnect/pkg/logger"
)

var ErrLockTimeout = service.ErrLockTimeout

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken over is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds locks across instances with SET NX PX.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		prefix:     "visaconnect:lock:",
	}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	redisKey := l.prefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			return nil, ErrLockTimeout
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				logger.Warn("failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}
