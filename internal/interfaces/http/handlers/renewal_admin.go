package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/application/dto"
	"github.com/bivex/subscription-renewals/internal/application/middleware"
	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/interfaces/http/response"
)

// StatsInvalidator drops cached renewal statistics after a write
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RenewalAdminHandler handles the operator renewal endpoints
type RenewalAdminHandler struct {
	processor *service.RenewalProcessor
	stats     *service.RenewalStatisticsService
	grace     *service.GracePeriodService
	subs      repository.SubscriptionRepository
	cache     StatsInvalidator
	audit     *service.AuditService
	now       func() time.Time
}

// NewRenewalAdminHandler creates a new renewal admin handler. cache may be nil.
func NewRenewalAdminHandler(
	processor *service.RenewalProcessor,
	stats *service.RenewalStatisticsService,
	grace *service.GracePeriodService,
	subs repository.SubscriptionRepository,
	cache StatsInvalidator,
) *RenewalAdminHandler {
	return &RenewalAdminHandler{
		processor: processor,
		stats:     stats,
		grace:     grace,
		subs:      subs,
		cache:     cache,
		now:       time.Now,
	}
}

// WithAudit records every write action in the operator audit log
func (h *RenewalAdminHandler) WithAudit(audit *service.AuditService) *RenewalAdminHandler {
	h.audit = audit
	return h
}

// Register mounts the read endpoints on read and the charge-triggering ones on write
func (h *RenewalAdminHandler) Register(read, write gin.IRoutes) {
	read.GET("/due", h.ListDue)
	read.GET("/failed", h.ListFailed)
	read.GET("/statistics", h.GetStatistics)
	read.GET("/success-rate", h.GetSuccessRate)
	read.GET("/subscriptions/:id/grace-period", h.GetGracePeriod)
	read.GET("/subscriptions/:id/audit", h.GetAuditHistory)

	write.POST("/process-due", h.ProcessDue)
	write.POST("/subscriptions/:id/process", h.ProcessRenewal)
	write.POST("/subscriptions/:id/manual-renewal", h.ManualRenewal)
	write.POST("/subscriptions/:id/reactivate", h.Reactivate)
}

// ListDue returns subscriptions billed within the next day
// @Summary List subscriptions due for renewal
// @Tags renewals
// @Produce json
// @Security Bearer
// @Success 200 {object} response.SuccessResponse{data=dto.SubscriptionListResponse}
// @Router /admin/renewals/due [get]
func (h *RenewalAdminHandler) ListDue(c *gin.Context) {
	subs, err := h.stats.GetDueForRenewal(c.Request.Context())
	if err != nil {
		h.fail(c, "list due renewals", err)
		return
	}
	response.OK(c, subscriptionList(subs))
}

// ListFailed returns subscriptions cancelled after exhausting their renewal attempts
// @Summary List failed renewals
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param academy_id query int false "Academy ID, 0 for all"
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.SuccessResponse{data=dto.SubscriptionListResponse}
// @Failure 400 {object} response.ErrorResponse
// @Router /admin/renewals/failed [get]
func (h *RenewalAdminHandler) ListFailed(c *gin.Context) {
	academyID, days, ok := windowParams(c)
	if !ok {
		return
	}
	subs, err := h.stats.GetFailedRenewals(c.Request.Context(), academyID, days)
	if err != nil {
		h.fail(c, "list failed renewals", err)
		return
	}
	response.OK(c, subscriptionList(subs))
}

// GetStatistics returns renewal counts and revenue for a window
// @Summary Renewal statistics
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param academy_id query int false "Academy ID, 0 for all"
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.SuccessResponse{data=entity.RenewalStatistics}
// @Router /admin/renewals/statistics [get]
func (h *RenewalAdminHandler) GetStatistics(c *gin.Context) {
	academyID, days, ok := windowParams(c)
	if !ok {
		return
	}
	stats, err := h.stats.GetRenewalStatistics(c.Request.Context(), academyID, days)
	if err != nil {
		h.fail(c, "get renewal statistics", err)
		return
	}
	response.OK(c, stats)
}

// GetSuccessRate returns the renewal success percentage for a window
// @Summary Renewal success rate
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param academy_id query int false "Academy ID, 0 for all"
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.SuccessResponse{data=dto.SuccessRateResponse}
// @Router /admin/renewals/success-rate [get]
func (h *RenewalAdminHandler) GetSuccessRate(c *gin.Context) {
	academyID, days, ok := windowParams(c)
	if !ok {
		return
	}
	rate, err := h.stats.GetRenewalSuccessRate(c.Request.Context(), academyID, days)
	if err != nil {
		h.fail(c, "get renewal success rate", err)
		return
	}
	if days <= 0 {
		days = service.DefaultStatisticsWindowDays
	}
	response.OK(c, dto.SuccessRateResponse{AcademyID: academyID, WindowDays: days, SuccessRate: rate})
}

// GetGracePeriod returns the open grace window of a subscription
// @Summary Grace period status
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.SuccessResponse{data=dto.GracePeriodResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/renewals/subscriptions/{id}/grace-period [get]
func (h *RenewalAdminHandler) GetGracePeriod(c *gin.Context) {
	id, ok := subscriptionID(c)
	if !ok {
		return
	}
	gp, err := h.grace.GetGracePeriodStatus(c.Request.Context(), id)
	if errors.Is(err, service.ErrGracePeriodNotActive) {
		response.NotFound(c, "Subscription is not in a grace period")
		return
	}
	if err != nil {
		h.fail(c, "get grace period", err)
		return
	}
	response.OK(c, dto.GracePeriodResponse{
		SubscriptionID: id.String(),
		StartedAt:      gp.StartedAt,
		ExpiresAt:      gp.ExpiresAt,
		DaysRemaining:  gp.DaysRemaining(h.now()),
	})
}

// ProcessDue runs one synchronous renewal sweep
// @Summary Process all due renewals
// @Tags renewals
// @Produce json
// @Security Bearer
// @Success 200 {object} response.SuccessResponse{data=service.BatchResult}
// @Router /admin/renewals/process-due [post]
func (h *RenewalAdminHandler) ProcessDue(c *gin.Context) {
	result, err := h.processor.ProcessDueRenewals(c.Request.Context())
	if err != nil {
		h.fail(c, "process due renewals", err)
		return
	}
	h.invalidate(c)
	h.record(c, entity.AuditActionProcessDue, nil, map[string]any{
		"processed":  result.Processed,
		"successful": result.Successful,
		"failed":     result.Failed,
	})
	response.OK(c, result)
}

// ProcessRenewal attempts an automatic renewal of one subscription now
// @Summary Process a single renewal
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.SuccessResponse{data=dto.ProcessRenewalResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/renewals/subscriptions/{id}/process [post]
func (h *RenewalAdminHandler) ProcessRenewal(c *gin.Context) {
	id, ok := subscriptionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sub, err := h.subs.GetByID(ctx, id)
	if err != nil {
		h.fail(c, "load subscription", err)
		return
	}
	outcome, err := h.processor.Process(ctx, sub)
	if err != nil {
		// an aborted attempt still records a failure unless the row is gone
		if !domainErrors.IsNotFound(err) {
			h.invalidate(c)
			h.record(c, entity.AuditActionProcessRenewal, &id, map[string]any{
				"outcome": string(outcome),
				"error":   err.Error(),
			})
		}
		h.fail(c, "process renewal", err)
		return
	}
	if !outcome.IsSkipped() {
		h.invalidate(c)
	}
	h.record(c, entity.AuditActionProcessRenewal, &id, map[string]any{"outcome": string(outcome)})

	resp := dto.ProcessRenewalResponse{SubscriptionID: id.String(), Outcome: string(outcome)}
	if current, err := h.subs.GetByID(ctx, id); err == nil {
		s := dto.NewSubscriptionResponse(current)
		resp.Subscription = &s
	}
	response.OK(c, resp)
}

// ManualRenewal extends a subscription after an out-of-band payment
// @Summary Manually renew a subscription
// @Tags renewals
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Param request body dto.ManualRenewalRequest true "Manual renewal"
// @Success 200 {object} response.SuccessResponse{data=dto.SubscriptionResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /admin/renewals/subscriptions/{id}/manual-renewal [post]
func (h *RenewalAdminHandler) ManualRenewal(c *gin.Context) {
	id, ok := subscriptionID(c)
	if !ok {
		return
	}
	var req dto.ManualRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	var cycle *entity.BillingCycle
	if req.BillingCycle != "" {
		parsed, _ := entity.ParseBillingCycle(req.BillingCycle)
		cycle = &parsed
	}

	sub, err := h.processor.ManualRenewal(c.Request.Context(), id, req.Amount, cycle)
	if err != nil {
		h.fail(c, "manual renewal", err)
		return
	}
	h.invalidate(c)
	h.record(c, entity.AuditActionManualRenewal, &id, map[string]any{
		"amount":        req.Amount,
		"billing_cycle": string(sub.BillingCycle),
	})
	response.OK(c, dto.NewSubscriptionResponse(sub))
}

// Reactivate restarts a cancelled subscription
// @Summary Reactivate a cancelled subscription
// @Tags renewals
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Param request body dto.ReactivateRequest true "Reactivation"
// @Success 200 {object} response.SuccessResponse{data=dto.SubscriptionResponse}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /admin/renewals/subscriptions/{id}/reactivate [post]
func (h *RenewalAdminHandler) Reactivate(c *gin.Context) {
	id, ok := subscriptionID(c)
	if !ok {
		return
	}
	var req dto.ReactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	sub, err := h.processor.Reactivate(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.fail(c, "reactivate subscription", err)
		return
	}
	h.invalidate(c)
	h.record(c, entity.AuditActionReactivate, &id, map[string]any{"amount": req.Amount})
	response.OK(c, dto.NewSubscriptionResponse(sub))
}

// GetAuditHistory returns the operator actions taken on a subscription
// @Summary Subscription audit history
// @Tags renewals
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.SuccessResponse{data=[]dto.AuditEntryResponse}
// @Router /admin/renewals/subscriptions/{id}/audit [get]
func (h *RenewalAdminHandler) GetAuditHistory(c *gin.Context) {
	id, ok := subscriptionID(c)
	if !ok {
		return
	}
	if h.audit == nil {
		response.OK(c, []dto.AuditEntryResponse{})
		return
	}
	entries, err := h.audit.History(c.Request.Context(), id, 0)
	if err != nil {
		h.fail(c, "get audit history", err)
		return
	}
	response.OK(c, dto.NewAuditEntryList(entries))
}

// record never fails the request; the action has already been applied
func (h *RenewalAdminHandler) record(c *gin.Context, action string, subscriptionID *uuid.UUID, details map[string]any) {
	if h.audit == nil {
		return
	}
	operatorID := c.GetString(middleware.ContextKeyOperatorID)
	if err := h.audit.LogAction(c.Request.Context(), operatorID, action, subscriptionID, details); err != nil {
		logging.GetLogger(c).Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}

func (h *RenewalAdminHandler) fail(c *gin.Context, op string, err error) {
	logging.GetLogger(c).Warn("renewal admin request failed", zap.String("op", op), zap.Error(err))
	response.FromError(c, err)
}

func (h *RenewalAdminHandler) invalidate(c *gin.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(c.Request.Context()); err != nil {
		logging.GetLogger(c).Warn("failed to invalidate renewal statistics cache", zap.Error(err))
	}
}

func subscriptionList(subs []*entity.Subscription) dto.SubscriptionListResponse {
	return dto.SubscriptionListResponse{Subscriptions: dto.NewSubscriptionList(subs), Count: len(subs)}
}

func subscriptionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid subscription ID")
		return uuid.Nil, false
	}
	return id, true
}

// windowParams reads academy_id and days. Both default to 0, which the
// statistics service treats as every academy and the default window.
func windowParams(c *gin.Context) (int64, int, bool) {
	var academyID int64
	if raw := c.Query("academy_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			response.BadRequest(c, "academy_id must be a non-negative integer")
			return 0, 0, false
		}
		academyID = v
	}
	var days int
	if raw := c.Query("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 366 {
			response.BadRequest(c, "days must be between 1 and 366")
			return 0, 0, false
		}
		days = v
	}
	return academyID, days, true
}
