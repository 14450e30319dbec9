package entity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

type PaymentRecordStatus string

const (
	PaymentRecordPending PaymentRecordStatus = "pending"
	PaymentRecordPaid    PaymentRecordStatus = "paid"
	PaymentRecordFailed  PaymentRecordStatus = "failed"
)

const (
	renewalCodePrefix = "RNW"
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeSuffixLength  = 6
)

// Payment is a single charge attempt for a subscription renewal
type Payment struct {
	ID             uuid.UUID
	AcademyID      int64
	SubscriptionID uuid.UUID
	SubscriberID   uuid.UUID
	PaymentCode    string
	Amount         float64
	Currency       string
	Status         PaymentRecordStatus
	FailureReason  string
	GatewayTxID    string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRenewalPayment creates a pending payment for a renewal attempt
func NewRenewalPayment(sub *Subscription, amount float64, now time.Time) *Payment {
	return &Payment{
		ID:             uuid.New(),
		AcademyID:      sub.AcademyID,
		SubscriptionID: sub.ID,
		SubscriberID:   sub.SubscriberID,
		PaymentCode:    GenerateRenewalCode(sub.AcademyID, now),
		Amount:         amount,
		Currency:       sub.Currency,
		Status:         PaymentRecordPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// GenerateRenewalCode builds a code of the form RNW-{academy}-{yyyymmdd}-{6 base36 chars}
func GenerateRenewalCode(academyID int64, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s-%s", renewalCodePrefix, academyID, at.Format("20060102"), randomBase36(codeSuffixLength))
}

// MarkPaid records a successful charge
func (p *Payment) MarkPaid(gatewayTxID string, at time.Time) {
	p.Status = PaymentRecordPaid
	p.GatewayTxID = gatewayTxID
	p.PaidAt = &at
	p.UpdatedAt = at
}

// MarkFailed records a declined charge
func (p *Payment) MarkFailed(reason string, at time.Time) {
	p.Status = PaymentRecordFailed
	p.FailureReason = reason
	p.UpdatedAt = at
}

// IsPaid returns true if the payment went through
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentRecordPaid
}

// IsFailed returns true if the payment was declined
func (p *Payment) IsFailed() bool {
	return p.Status == PaymentRecordFailed
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand failing is unrecoverable for id generation
			panic(err)
		}
		buf[i] = base36Alphabet[idx.Int64()]
	}
	return string(buf)
}
