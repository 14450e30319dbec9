package dto

import (
	"time"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
)

// ========== SUBSCRIPTION DTOs ==========

// SubscriptionResponse represents a subscription in admin responses
type SubscriptionResponse struct {
	ID                    string          `json:"id"`
	AcademyID             int64           `json:"academy_id"`
	SubscriberID          string          `json:"subscriber_id"`
	SubscriptionCode      string          `json:"subscription_code"`
	Type                  string          `json:"type"`
	Status                string          `json:"status"`
	PaymentStatus         string          `json:"payment_status"`
	BillingCycle          string          `json:"billing_cycle"`
	AutoRenew             bool            `json:"auto_renew"`
	FinalPrice            float64         `json:"final_price"`
	RenewalPrice          float64         `json:"renewal_price"`
	Currency              string          `json:"currency"`
	StartsAt              *time.Time      `json:"starts_at,omitempty"`
	EndsAt                *time.Time      `json:"ends_at,omitempty"`
	NextBillingDate       *time.Time      `json:"next_billing_date,omitempty"`
	LastPaymentDate       *time.Time      `json:"last_payment_date,omitempty"`
	RenewalReminderSentAt *time.Time      `json:"renewal_reminder_sent_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason    string          `json:"cancellation_reason,omitempty"`
	RenewalFailure        *RenewalFailure `json:"renewal_failure,omitempty"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// RenewalFailure is the failure bookkeeping of a subscription
type RenewalFailure struct {
	FailedCount          int        `json:"failed_count"`
	LastFailureAt        *time.Time `json:"last_failure_at,omitempty"`
	LastFailureReason    string     `json:"last_failure_reason,omitempty"`
	GracePeriodStartedAt *time.Time `json:"grace_period_started_at,omitempty"`
	GracePeriodExpiresAt *time.Time `json:"grace_period_expires_at,omitempty"`
}

// NewSubscriptionResponse maps a subscription entity to its response
func NewSubscriptionResponse(sub *entity.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:                    sub.ID.String(),
		AcademyID:             sub.AcademyID,
		SubscriberID:          sub.SubscriberID.String(),
		SubscriptionCode:      sub.SubscriptionCode,
		Type:                  string(sub.Type),
		Status:                string(sub.Status),
		PaymentStatus:         string(sub.PaymentStatus),
		BillingCycle:          sub.BillingCycle.String(),
		AutoRenew:             sub.AutoRenew,
		FinalPrice:            sub.FinalPrice,
		RenewalPrice:          sub.CalculateRenewalPrice(),
		Currency:              sub.Currency,
		StartsAt:              sub.StartsAt,
		EndsAt:                sub.EndsAt,
		NextBillingDate:       sub.NextBillingDate,
		LastPaymentDate:       sub.LastPaymentDate,
		RenewalReminderSentAt: sub.RenewalReminderSentAt,
		CancelledAt:           sub.CancelledAt,
		CancellationReason:    sub.CancellationReason,
		UpdatedAt:             sub.UpdatedAt,
	}
	if f := sub.FailureState(); f.FailedCount > 0 || f.InGracePeriod() {
		resp.RenewalFailure = &RenewalFailure{
			FailedCount:          f.FailedCount,
			LastFailureAt:        f.LastFailureAt,
			LastFailureReason:    f.LastFailureReason,
			GracePeriodStartedAt: f.GracePeriodStartedAt,
			GracePeriodExpiresAt: f.GracePeriodExpiresAt,
		}
	}
	return resp
}

// NewSubscriptionList maps a slice of subscriptions
func NewSubscriptionList(subs []*entity.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, NewSubscriptionResponse(sub))
	}
	return out
}

// SubscriptionListResponse wraps a list with its size
type SubscriptionListResponse struct {
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
	Count         int                    `json:"count"`
}

// ========== RENEWAL DTOs ==========

// ManualRenewalRequest extends a subscription after an out-of-band payment
type ManualRenewalRequest struct {
	Amount       float64 `json:"amount" binding:"gte=0"`
	BillingCycle string  `json:"billing_cycle" binding:"omitempty,oneof=monthly quarterly yearly lifetime"`
}

// ReactivateRequest restarts a cancelled subscription
type ReactivateRequest struct {
	Amount float64 `json:"amount" binding:"gte=0"`
}

// ProcessRenewalResponse reports a single automatic renewal attempt
type ProcessRenewalResponse struct {
	SubscriptionID string                `json:"subscription_id"`
	Outcome        string                `json:"outcome"`
	Subscription   *SubscriptionResponse `json:"subscription,omitempty"`
}

// SuccessRateResponse reports the renewal success percentage of a window
type SuccessRateResponse struct {
	AcademyID   int64   `json:"academy_id"`
	WindowDays  int     `json:"window_days"`
	SuccessRate float64 `json:"success_rate"`
}

// GracePeriodResponse reports an open grace window
type GracePeriodResponse struct {
	SubscriptionID string    `json:"subscription_id"`
	StartedAt      time.Time `json:"started_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	DaysRemaining  int       `json:"days_remaining"`
}

// AuditEntryResponse is one operator action
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	OperatorID string         `json:"operator_id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewAuditEntryList converts audit entries into responses
func NewAuditEntryList(entries []*entity.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID.String(),
			OperatorID: e.OperatorID,
			Action:     e.Action,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
