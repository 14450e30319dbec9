package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// MemoryLocker implements service.Locker inside a single process. Used when
// no redis is configured and in tests.
type MemoryLocker struct {
	mu    sync.Mutex
	items *cache.Cache
}

var _ service.Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{items: cache.New(time.Hour, 10*time.Minute)}
}

// TryAcquire adds key if absent and returns immediately
func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (service.LockHandle, bool, error) {
	token := uuid.NewString()
	if err := l.items.Add(key, token, ttl); err != nil {
		return nil, false, nil
	}
	return &memoryLock{locker: l, key: key, token: token}, true, nil
}

// Held reports whether key is currently locked
func (l *MemoryLocker) Held(key string) bool {
	_, ok := l.items.Get(key)
	return ok
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (h *memoryLock) Release(context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()
	current, ok := h.locker.items.Get(h.key)
	if !ok || current.(string) != h.token {
		return ErrLockNotHeld
	}
	h.locker.items.Delete(h.key)
	return nil
}
