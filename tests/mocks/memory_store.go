package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

// MemoryStore is an in-memory UnitOfWork with subscription, payment and
// statistics repositories. Transactions are serialized and rolled back by
// restoring a snapshot taken when they began.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	subs     map[uuid.UUID]*entity.Subscription
	payments map[uuid.UUID]*entity.Payment
	failNext map[string]error

	Commits   int
	Rollbacks int
}

// Store operations that can be made to fail with FailNext
const (
	OpSubscriptionUpdate = "subscription.update"
	OpPaymentCreate      = "payment.create"
	OpPaymentUpdate      = "payment.update"
	OpMarkReminderSent   = "subscription.mark_reminder_sent"
)

var (
	_ repository.UnitOfWork                  = (*MemoryStore)(nil)
	_ repository.SubscriptionRepository      = (*MemoryStore)(nil)
	_ repository.RenewalStatisticsRepository = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:     make(map[uuid.UUID]*entity.Subscription),
		payments: make(map[uuid.UUID]*entity.Payment),
		failNext: make(map[string]error),
	}
}

// Put inserts or replaces a subscription
func (s *MemoryStore) Put(sub *entity.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub.Clone()
}

// Delete removes a subscription
func (s *MemoryStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Subscription returns a copy of the stored subscription, or nil
func (s *MemoryStore) Subscription(id uuid.UUID) *entity.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		return sub.Clone()
	}
	return nil
}

// PaymentsFor returns copies of the payments recorded for a subscription
func (s *MemoryStore) PaymentsFor(subscriptionID uuid.UUID) []*entity.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Payment
	for _, p := range s.payments {
		if p.SubscriptionID == subscriptionID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// FailNext makes the next call of op return err
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *MemoryStore) takeFailure(op string) error {
	err, ok := s.failNext[op]
	if ok {
		delete(s.failNext, op)
	}
	return err
}

// WithinTransaction implements repository.UnitOfWork
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	subs, payments := s.snapshot()
	if err := fn(ctx, memoryTx{s}); err != nil {
		s.mu.Lock()
		s.subs, s.payments = subs, payments
		s.Rollbacks++
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.Commits++
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) snapshot() (map[uuid.UUID]*entity.Subscription, map[uuid.UUID]*entity.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make(map[uuid.UUID]*entity.Subscription, len(s.subs))
	for id, sub := range s.subs {
		subs[id] = sub.Clone()
	}
	payments := make(map[uuid.UUID]*entity.Payment, len(s.payments))
	for id, p := range s.payments {
		c := *p
		payments[id] = &c
	}
	return subs, payments
}

type memoryTx struct {
	store *MemoryStore
}

func (t memoryTx) Subscriptions() repository.SubscriptionRepository { return t.store }
func (t memoryTx) Payments() repository.PaymentRepository           { return memoryPayments{t.store} }

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*entity.Subscription, error) {
	if sub := s.Subscription(id); sub != nil {
		return sub, nil
	}
	return nil, domainErrors.NewSubscriptionNotFound(id.String())
}

func (s *MemoryStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) Update(_ context.Context, sub *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(OpSubscriptionUpdate); err != nil {
		return err
	}
	if _, ok := s.subs[sub.ID]; !ok {
		return domainErrors.NewSubscriptionNotFound(sub.ID.String())
	}
	s.subs[sub.ID] = sub.Clone()
	return nil
}

func (s *MemoryStore) ListDueForRenewal(_ context.Context, before time.Time, limit int) ([]*entity.Subscription, error) {
	return s.filter(limit, func(sub *entity.Subscription) bool {
		return renewable(sub) && !sub.NextBillingDate.After(before)
	}), nil
}

func (s *MemoryStore) ListBillingBetween(_ context.Context, from, to time.Time, unremindedOnly bool) ([]*entity.Subscription, error) {
	return s.filter(0, func(sub *entity.Subscription) bool {
		if !renewable(sub) || sub.NextBillingDate.Before(from) || !sub.NextBillingDate.Before(to) {
			return false
		}
		return !unremindedOnly || sub.RenewalReminderSentAt == nil
	}), nil
}

func (s *MemoryStore) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(OpMarkReminderSent); err != nil {
		return err
	}
	sub, ok := s.subs[id]
	if !ok {
		return domainErrors.NewSubscriptionNotFound(id.String())
	}
	sub.RenewalReminderSentAt = &at
	return nil
}

func (s *MemoryStore) ListGracePeriodExpired(_ context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	return s.filter(limit, func(sub *entity.Subscription) bool {
		f := sub.FailureState()
		return sub.IsActive() && sub.PaymentStatus == entity.PaymentStatusFailed &&
			f.GracePeriodExpiresAt != nil && !f.GracePeriodExpiresAt.After(now)
	}), nil
}

func (s *MemoryStore) ListFailedRenewals(_ context.Context, filter repository.RenewalFilter) ([]*entity.Subscription, error) {
	out := s.filter(0, func(sub *entity.Subscription) bool {
		return inAcademy(sub, filter) &&
			sub.Status == entity.StatusCancelled &&
			sub.PaymentStatus == entity.PaymentStatusFailed &&
			inWindow(sub.UpdatedAt, filter)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) CountRenewalsByType(_ context.Context, filter repository.RenewalFilter, upcomingUntil time.Time) ([]entity.RenewalTypeCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[entity.SubscriptionType]*entity.RenewalTypeCounts)
	get := func(t entity.SubscriptionType) *entity.RenewalTypeCounts {
		if c, ok := byType[t]; ok {
			return c
		}
		c := &entity.RenewalTypeCounts{Type: t}
		byType[t] = c
		return c
	}
	for _, sub := range s.subs {
		if !inAcademy(sub, filter) {
			continue
		}
		switch {
		case sub.PaymentStatus == entity.PaymentStatusPaid && sub.LastPaymentDate != nil && inWindow(*sub.LastPaymentDate, filter):
			c := get(sub.Type)
			c.Successful++
			c.Revenue += sub.FinalPrice
		case sub.Status == entity.StatusCancelled && sub.PaymentStatus == entity.PaymentStatusFailed && inWindow(sub.UpdatedAt, filter):
			get(sub.Type).Failed++
		}
		if renewable(sub) && sub.NextBillingDate.After(filter.Until) && !sub.NextBillingDate.After(upcomingUntil) {
			get(sub.Type).Upcoming++
		}
	}

	out := make([]entity.RenewalTypeCounts, 0, len(byType))
	for _, c := range byType {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *MemoryStore) filter(limit int, keep func(*entity.Subscription) bool) []*entity.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Subscription
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, sub.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextBillingDate == nil || out[j].NextBillingDate == nil {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].NextBillingDate.Before(*out[j].NextBillingDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func renewable(sub *entity.Subscription) bool {
	return sub.IsActive() && sub.AutoRenew && sub.NextBillingDate != nil
}

func inAcademy(sub *entity.Subscription, filter repository.RenewalFilter) bool {
	return filter.AcademyID == 0 || sub.AcademyID == filter.AcademyID
}

func inWindow(t time.Time, filter repository.RenewalFilter) bool {
	return !t.Before(filter.Since) && !t.After(filter.Until)
}

type memoryPayments struct {
	store *MemoryStore
}

func (p memoryPayments) Create(_ context.Context, payment *entity.Payment) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if err := p.store.takeFailure(OpPaymentCreate); err != nil {
		return err
	}
	c := *payment
	p.store.payments[payment.ID] = &c
	return nil
}

func (p memoryPayments) Update(_ context.Context, payment *entity.Payment) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if err := p.store.takeFailure(OpPaymentUpdate); err != nil {
		return err
	}
	if _, ok := p.store.payments[payment.ID]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	c := *payment
	p.store.payments[payment.ID] = &c
	return nil
}

func (p memoryPayments) GetByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if payment, ok := p.store.payments[id]; ok {
		c := *payment
		return &c, nil
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (p memoryPayments) GetBySubscriptionID(_ context.Context, subscriptionID uuid.UUID) ([]*entity.Payment, error) {
	return p.store.PaymentsFor(subscriptionID), nil
}
