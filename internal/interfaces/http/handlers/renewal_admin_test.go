package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/application/middleware"
	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/internal/infrastructure/lock"
	"github.com/bivex/subscription-renewals/internal/interfaces/http/handlers"
	"github.com/bivex/subscription-renewals/tests/mocks"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

type adminFixture struct {
	store   *mocks.MemoryStore
	gateway *mocks.MockPaymentGateway
	cache   *countingInvalidator
	audit   *mocks.MemoryAuditLog
	router  *gin.Engine
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &adminFixture{
		store:   mocks.NewMemoryStore(),
		gateway: mocks.NewMockPaymentGateway(),
		cache:   &countingInvalidator{},
		audit:   mocks.NewMemoryAuditLog(),
	}
	sender := mocks.NewMockNotificationSender()
	sender.On("SendRenewalSuccessNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	sender.On("SendPaymentFailedNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	processor := service.NewRenewalProcessor(
		f.store,
		f.store,
		lock.NewMemoryLocker(),
		f.gateway,
		service.NewRenewalNotificationService(sender, nil),
		service.DefaultRenewalConfig(),
	)
	stats := service.NewRenewalStatisticsService(f.store, f.store, nil, nil)
	grace := service.NewGracePeriodService(f.store, service.NewLoggingGraceExpiryHandler(nil), 0, nil)
	h := handlers.NewRenewalAdminHandler(processor, stats, grace, f.store, f.cache).
		WithAudit(service.NewAuditService(f.audit, nil))

	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyOperatorID, "operator-1")
		c.Next()
	})
	group := f.router.Group("/v1/admin/renewals")
	h.Register(group, group)
	return f
}

func (f *adminFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	return w, decoded
}

func activeSubscription(nextBilling time.Time) *entity.Subscription {
	now := time.Now().UTC()
	starts := now.AddDate(0, -1, 0)
	return &entity.Subscription{
		ID:              uuid.New(),
		AcademyID:       3,
		SubscriberID:    uuid.New(),
		Type:            entity.TypeCourse,
		Status:          entity.StatusActive,
		PaymentStatus:   entity.PaymentStatusPaid,
		AutoRenew:       true,
		BillingCycle:    entity.BillingMonthly,
		MonthlyPrice:    40,
		FinalPrice:      40,
		Currency:        "SAR",
		PaymentToken:    "tok",
		StartsAt:        &starts,
		EndsAt:          &nextBilling,
		NextBillingDate: &nextBilling,
		CreatedAt:       starts,
		UpdatedAt:       starts,
	}
}

func cancelledSubscription() *entity.Subscription {
	now := time.Now().UTC()
	sub := activeSubscription(now.AddDate(0, 0, -5))
	sub.Status = entity.StatusCancelled
	sub.PaymentStatus = entity.PaymentStatusFailed
	sub.AutoRenew = false
	sub.CancelledAt = &now
	sub.CancellationReason = "Renewal failed after 3 attempts"
	sub.UpdatedAt = now
	return sub
}

func TestRenewalAdminHandler_Reads(t *testing.T) {
	f := newAdminFixture(t)
	now := time.Now().UTC()
	due := activeSubscription(now.Add(12 * time.Hour))
	later := activeSubscription(now.AddDate(0, 0, 10))
	failed := cancelledSubscription()
	f.store.Put(due)
	f.store.Put(later)
	f.store.Put(failed)

	t.Run("GET due lists subscriptions billed within a day", func(t *testing.T) {
		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/due", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		data := body["data"].(map[string]interface{})
		assert.EqualValues(t, 1, data["count"])
		subs := data["subscriptions"].([]interface{})
		require.Len(t, subs, 1)
		assert.Equal(t, due.ID.String(), subs[0].(map[string]interface{})["id"])
	})

	t.Run("GET failed filters by academy", func(t *testing.T) {
		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/failed?academy_id=3&days=7", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, body["data"].(map[string]interface{})["count"])

		w, body = f.do(t, http.MethodGet, "/v1/admin/renewals/failed?academy_id=99", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, body["data"].(map[string]interface{})["count"])
	})

	t.Run("GET failed rejects a malformed window", func(t *testing.T) {
		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/failed?days=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", body["error"])
	})

	t.Run("GET success-rate defaults to the thirty day window", func(t *testing.T) {
		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/success-rate", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		data := body["data"].(map[string]interface{})
		assert.EqualValues(t, 30, data["window_days"])
		assert.EqualValues(t, 0, data["success_rate"])
	})

	t.Run("GET statistics counts failures", func(t *testing.T) {
		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/statistics?academy_id=3", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, body["data"].(map[string]interface{})["total_failed"])
	})

	t.Run("GET grace-period is 404 outside a grace window", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/v1/admin/renewals/subscriptions/"+due.ID.String()+"/grace-period", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET grace-period reports an open window", func(t *testing.T) {
		sub := activeSubscription(now.AddDate(0, 0, 1))
		state := sub.FailureState()
		state.RecordFailure("Card declined", now)
		state.StartGracePeriod(now, 3)
		sub.SetFailureState(state)
		f.store.Put(sub)

		w, body := f.do(t, http.MethodGet, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/grace-period", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sub.ID.String(), body["data"].(map[string]interface{})["subscription_id"])
	})
}

func TestRenewalAdminHandler_ProcessRenewal(t *testing.T) {
	t.Run("charges and returns the renewed subscription", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 2))
		f.store.Put(sub)
		f.gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.GatewayResult{Success: true, TransactionID: "tx-9"}, nil).Once()

		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/process", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, string(service.OutcomeSucceeded), data["outcome"])
		assert.NotNil(t, data["subscription"])
		assert.Equal(t, 1, f.cache.calls)
		assert.True(t, f.store.Subscription(sub.ID).NextBillingDate.After(*sub.NextBillingDate))
		f.gateway.AssertExpectations(t)
	})

	t.Run("reports an ineligible subscription as skipped", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 20))
		f.store.Put(sub)

		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/process", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(service.OutcomeSkippedIneligible), body["data"].(map[string]interface{})["outcome"])
		assert.Zero(t, f.cache.calls)
		f.gateway.AssertNotCalled(t, "ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("aborted attempt is audited and invalidates the cache", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 2))
		f.store.Put(sub)
		f.gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: gateway timeout", domainErrors.ErrExternalServiceUnavailable)).Once()

		w, _ := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/process", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		assert.Equal(t, 1, f.store.Subscription(sub.ID).FailureState().FailedCount)
		assert.Equal(t, 1, f.cache.calls)
		entries := f.audit.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, entity.AuditActionProcessRenewal, entries[0].Action)
		assert.Equal(t, string(service.OutcomeErrored), entries[0].Details["outcome"])
	})

	t.Run("unknown subscription is 404", func(t *testing.T) {
		f := newAdminFixture(t)
		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+uuid.NewString()+"/process", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", body["error"])
		assert.Empty(t, f.audit.Entries())
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		f := newAdminFixture(t)
		w, _ := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/not-a-uuid/process", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRenewalAdminHandler_ProcessDue(t *testing.T) {
	f := newAdminFixture(t)
	f.store.Put(activeSubscription(time.Now().UTC().Add(6 * time.Hour)))
	f.gateway.On("ProcessSubscriptionRenewal", mock.Anything, mock.Anything, mock.Anything).
		Return(&service.GatewayResult{Success: false, Error: "Insufficient funds"}, nil).Once()

	w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/process-due", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["processed"])
	assert.EqualValues(t, 1, data["failed"])
	assert.Equal(t, 1, f.cache.calls)
}

func TestRenewalAdminHandler_ManualRenewal(t *testing.T) {
	t.Run("switches billing cycle", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 1))
		f.store.Put(sub)

		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/manual-renewal",
			map[string]interface{}{"amount": 120, "billing_cycle": "quarterly"})
		require.Equal(t, http.StatusOK, w.Code)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, "quarterly", data["billing_cycle"])
		assert.Equal(t, "paid", data["payment_status"])
		assert.Equal(t, entity.BillingQuarterly, f.store.Subscription(sub.ID).BillingCycle)
		assert.Equal(t, 1, f.cache.calls)
	})

	t.Run("cancelled subscription is a conflict", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := cancelledSubscription()
		f.store.Put(sub)

		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/manual-renewal",
			map[string]interface{}{"amount": 40})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", body["error"])
	})

	t.Run("rejects a negative amount and an unknown cycle", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 1))
		f.store.Put(sub)
		path := "/v1/admin/renewals/subscriptions/" + sub.ID.String() + "/manual-renewal"

		w, _ := f.do(t, http.MethodPost, path, map[string]interface{}{"amount": -1})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = f.do(t, http.MethodPost, path, map[string]interface{}{"amount": 10, "billing_cycle": "weekly"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, f.cache.calls)
	})
}

func TestRenewalAdminHandler_Reactivate(t *testing.T) {
	t.Run("restarts a cancelled subscription", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := cancelledSubscription()
		f.store.Put(sub)

		w, body := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/reactivate",
			map[string]interface{}{"amount": 40})
		require.Equal(t, http.StatusOK, w.Code)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, "active", data["status"])
		assert.Equal(t, true, data["auto_renew"])
		assert.Nil(t, data["cancelled_at"])
	})

	t.Run("active subscription is a conflict", func(t *testing.T) {
		f := newAdminFixture(t)
		sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 1))
		f.store.Put(sub)

		w, _ := f.do(t, http.MethodPost, "/v1/admin/renewals/subscriptions/"+sub.ID.String()+"/reactivate",
			map[string]interface{}{"amount": 40})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRenewalAdminHandler_AuditHistory(t *testing.T) {
	f := newAdminFixture(t)
	sub := activeSubscription(time.Now().UTC().AddDate(0, 0, 1))
	f.store.Put(sub)
	base := "/v1/admin/renewals/subscriptions/" + sub.ID.String()

	w, _ := f.do(t, http.MethodPost, base+"/manual-renewal", map[string]interface{}{"amount": 40})
	require.Equal(t, http.StatusOK, w.Code)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "operator-1", entries[0].OperatorID)
	assert.Equal(t, entity.AuditActionManualRenewal, entries[0].Action)
	require.NotNil(t, entries[0].SubscriptionID)
	assert.Equal(t, sub.ID, *entries[0].SubscriptionID)

	w, body := f.do(t, http.MethodGet, base+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, entity.AuditActionManualRenewal, data[0].(map[string]interface{})["action"])

	t.Run("rejected writes are not recorded", func(t *testing.T) {
		w, _ := f.do(t, http.MethodPost, base+"/reactivate", map[string]interface{}{"amount": 40})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Len(t, f.audit.Entries(), 1)
	})
}
