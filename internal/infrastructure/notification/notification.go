package notification

import (
	"time"

	"github.com/google/uuid"
)

// TaskTypeSend is the asynq task type carrying a Notification payload
const TaskTypeSend = "notification:send"

// Kind identifies which message is sent
type Kind string

const (
	KindRenewalReminder  Kind = "renewal_reminder"
	KindRenewalSucceeded Kind = "renewal_succeeded"
	KindPaymentFailed    Kind = "payment_failed"
)

// Notification is everything needed to render and deliver one message
// without going back to the database
type Notification struct {
	Kind             Kind       `json:"kind"`
	SubscriptionID   uuid.UUID  `json:"subscription_id"`
	SubscriptionCode string     `json:"subscription_code,omitempty"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Locale           string     `json:"locale"`
	DaysUntilRenewal int        `json:"days_until_renewal,omitempty"`
	Amount           float64    `json:"amount,omitempty"`
	Currency         string     `json:"currency,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	NextBillingDate  *time.Time `json:"next_billing_date,omitempty"`
}
