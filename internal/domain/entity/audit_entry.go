package entity

import (
	"time"

	"github.com/google/uuid"
)

// Operator actions recorded in the audit log
const (
	AuditActionProcessRenewal = "renewal.process"
	AuditActionProcessDue     = "renewal.process_due"
	AuditActionManualRenewal  = "renewal.manual"
	AuditActionReactivate     = "subscription.reactivate"
)

// AuditEntry records one operator action against the renewal system
type AuditEntry struct {
	ID             uuid.UUID
	OperatorID     string
	Action         string
	SubscriptionID *uuid.UUID
	Details        map[string]any
	CreatedAt      time.Time
}
