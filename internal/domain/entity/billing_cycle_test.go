package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

func TestParseBillingCycle(t *testing.T) {
	for _, raw := range []string{"monthly", "quarterly", "yearly", "lifetime"} {
		c, ok := entity.ParseBillingCycle(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, raw, c.String())
		assert.True(t, c.IsValid())
	}

	_, ok := entity.ParseBillingCycle("weekly")
	assert.False(t, ok)
	assert.False(t, entity.BillingCycle("").IsValid())
}

func TestBillingCycle_Dates(t *testing.T) {
	from := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		cycle       entity.BillingCycle
		renewable   bool
		months      int
		endDate     time.Time
		nextBilling time.Time
	}{
		{entity.BillingMonthly, true, 1, from.AddDate(0, 1, 0), from.AddDate(0, 1, 0)},
		{entity.BillingQuarterly, true, 3, from.AddDate(0, 3, 0), from.AddDate(0, 3, 0)},
		{entity.BillingYearly, true, 12, from.AddDate(1, 0, 0), from.AddDate(1, 0, 0)},
		{entity.BillingLifetime, false, 0, from.AddDate(100, 0, 0), from},
	}

	for _, tt := range tests {
		t.Run(tt.cycle.String(), func(t *testing.T) {
			assert.Equal(t, tt.renewable, tt.cycle.SupportsAutoRenewal())
			assert.Equal(t, tt.months, tt.cycle.Months())
			assert.Equal(t, tt.endDate, tt.cycle.CalculateEndDate(from))
			assert.Equal(t, tt.nextBilling, tt.cycle.NextBillingDate(from))
		})
	}
}
