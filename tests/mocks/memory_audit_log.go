package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

// MemoryAuditLog is an in-memory AuditLogRepository
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

var _ repository.AuditLogRepository = (*MemoryAuditLog)(nil)

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (l *MemoryAuditLog) Create(_ context.Context, entry *entity.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *entry
	l.entries = append(l.entries, &c)
	return nil
}

func (l *MemoryAuditLog) ListBySubscription(_ context.Context, subscriptionID uuid.UUID, limit int) ([]*entity.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.AuditEntry
	for _, e := range l.entries {
		if e.SubscriptionID != nil && *e.SubscriptionID == subscriptionID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns every recorded entry in insertion order
func (l *MemoryAuditLog) Entries() []*entity.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entity.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
