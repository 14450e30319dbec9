package entity

import (
	"encoding/json"
	"strconv"
	"time"
)

// Metadata keys used for renewal failure bookkeeping
const (
	MetaRenewalFailedCount       = "renewal_failed_count"
	MetaLastRenewalFailureAt     = "last_renewal_failure_at"
	MetaLastRenewalFailureReason = "last_renewal_failure_reason"
	MetaGracePeriodStartedAt     = "grace_period_started_at"
	MetaGracePeriodExpiresAt     = "grace_period_expires_at"
)

// RenewalFailureState is the typed view of the failure keys kept in Subscription.Metadata
type RenewalFailureState struct {
	FailedCount          int
	LastFailureAt        *time.Time
	LastFailureReason    string
	GracePeriodStartedAt *time.Time
	GracePeriodExpiresAt *time.Time
}

// RecordFailure increments the failure counter and stamps the reason
func (f *RenewalFailureState) RecordFailure(reason string, at time.Time) int {
	f.FailedCount++
	f.LastFailureAt = &at
	f.LastFailureReason = reason
	return f.FailedCount
}

// StartGracePeriod opens a grace window of the given number of days
func (f *RenewalFailureState) StartGracePeriod(at time.Time, days int) {
	expires := at.AddDate(0, 0, days)
	f.GracePeriodStartedAt = &at
	f.GracePeriodExpiresAt = &expires
}

// ClearFailures resets the retry bookkeeping. Grace period keys are kept.
func (f *RenewalFailureState) ClearFailures() {
	f.FailedCount = 0
	f.LastFailureAt = nil
	f.LastFailureReason = ""
}

// InGracePeriod returns true if a grace window has been opened
func (f *RenewalFailureState) InGracePeriod() bool {
	return f.GracePeriodExpiresAt != nil
}

// GracePeriod returns the grace window, or nil if none was opened
func (f *RenewalFailureState) GracePeriod() *GracePeriod {
	if f.GracePeriodStartedAt == nil || f.GracePeriodExpiresAt == nil {
		return nil
	}
	return &GracePeriod{
		StartedAt: *f.GracePeriodStartedAt,
		ExpiresAt: *f.GracePeriodExpiresAt,
	}
}

// FailureStateFromMetadata reads the failure keys out of a metadata map
func FailureStateFromMetadata(meta map[string]any) RenewalFailureState {
	var f RenewalFailureState
	if meta == nil {
		return f
	}
	f.FailedCount = intFromMeta(meta[MetaRenewalFailedCount])
	f.LastFailureAt = timeFromMeta(meta[MetaLastRenewalFailureAt])
	if reason, ok := meta[MetaLastRenewalFailureReason].(string); ok {
		f.LastFailureReason = reason
	}
	f.GracePeriodStartedAt = timeFromMeta(meta[MetaGracePeriodStartedAt])
	f.GracePeriodExpiresAt = timeFromMeta(meta[MetaGracePeriodExpiresAt])
	return f
}

// ApplyToMetadata writes the state into meta. Unset fields remove their keys;
// keys not owned by the failure state are left untouched.
func (f RenewalFailureState) ApplyToMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		meta = make(map[string]any)
	}

	if f.FailedCount > 0 {
		meta[MetaRenewalFailedCount] = f.FailedCount
	} else {
		delete(meta, MetaRenewalFailedCount)
	}
	setTime(meta, MetaLastRenewalFailureAt, f.LastFailureAt)
	if f.LastFailureReason != "" {
		meta[MetaLastRenewalFailureReason] = f.LastFailureReason
	} else {
		delete(meta, MetaLastRenewalFailureReason)
	}
	setTime(meta, MetaGracePeriodStartedAt, f.GracePeriodStartedAt)
	setTime(meta, MetaGracePeriodExpiresAt, f.GracePeriodExpiresAt)

	return meta
}

func setTime(meta map[string]any, key string, t *time.Time) {
	if t == nil {
		delete(meta, key)
		return
	}
	meta[key] = t.UTC().Format(time.RFC3339)
}

func intFromMeta(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	case json.Number:
		n, _ := x.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	}
	return 0
}

func timeFromMeta(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		return &x
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}
