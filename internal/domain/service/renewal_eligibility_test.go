package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

func TestEligibilityChecker(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := service.NewEligibilityChecker(0)

	tests := []struct {
		name   string
		modify func(sub *entity.Subscription)
		reason string
	}{
		{"eligible", func(*entity.Subscription) {}, ""},
		{"billing date unset", func(sub *entity.Subscription) { sub.NextBillingDate = nil }, ""},
		{"billing date overdue", func(sub *entity.Subscription) {
			past := now.AddDate(0, 0, -4)
			sub.NextBillingDate = &past
		}, ""},
		{"billing exactly at window edge", func(sub *entity.Subscription) {
			edge := now.Add(service.DefaultRenewalWindow)
			sub.NextBillingDate = &edge
		}, ""},
		{"billing just past window", func(sub *entity.Subscription) {
			late := now.Add(service.DefaultRenewalWindow + time.Minute)
			sub.NextBillingDate = &late
		}, service.ReasonOutsideRenewWindow},
		{"pending", func(sub *entity.Subscription) { sub.Status = entity.StatusPending }, service.ReasonNotActive},
		{"auto renew off", func(sub *entity.Subscription) { sub.AutoRenew = false }, service.ReasonAutoRenewOff},
		{"lifetime", func(sub *entity.Subscription) { sub.BillingCycle = entity.BillingLifetime }, service.ReasonCycleNotRenewable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := dueSubscription(now)
			tt.modify(sub)
			assert.Equal(t, tt.reason, checker.IneligibilityReason(sub, now))
			assert.Equal(t, tt.reason == "", service.CanProcessRenewal(sub, now))
		})
	}
}
