package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another worker is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
var ErrLockNotHeld = errors.New("lock not held")

// RedisLocker implements service.Locker with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
}

var _ service.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a new redis-backed locker
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryAcquire sets key if absent and returns immediately
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (service.LockHandle, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: l.client, key: key, token: token}, true, nil
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (h *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", h.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
