package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

func TestRenewalMetrics_ObserveRenewal(t *testing.T) {
	m := NewRenewalMetrics()

	m.ObserveRenewal(service.OutcomeSucceeded, entity.TypeQuran, 200*time.Millisecond)
	m.ObserveRenewal(service.OutcomeSucceeded, entity.TypeQuran, time.Second)
	m.ObserveRenewal(service.OutcomeFailed, entity.TypeCourse, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("succeeded", "quran")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("failed", "course")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.processing))
}

func TestRenewalMetrics_ObserveReminder(t *testing.T) {
	m := NewRenewalMetrics()

	m.ObserveReminder(7, true)
	m.ObserveReminder(7, false)
	m.ObserveReminder(3, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("7", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("7", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("3", "sent")))
}

func TestRenewalMetrics_HTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewRenewalMetrics()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/v1/admin/renewals/subscriptions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/renewals/subscriptions/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.reqCnt.WithLabelValues("204", http.MethodGet, "/v1/admin/renewals/subscriptions/:id")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "subscription_http_requests_total")
}
