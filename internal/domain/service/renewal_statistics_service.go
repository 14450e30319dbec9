package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

const (
	// DefaultStatisticsWindowDays is the reporting window used when none is given
	DefaultStatisticsWindowDays = 30

	upcomingRenewalDays = 7
)

// StatisticsCache stores computed dashboard statistics. A miss returns nil, nil.
type StatisticsCache interface {
	GetStatistics(ctx context.Context, academyID int64, windowDays int) (*entity.RenewalStatistics, error)
	SetStatistics(ctx context.Context, stats *entity.RenewalStatistics) error
}

// RenewalStatisticsService answers renewal reporting queries
type RenewalStatisticsService struct {
	subs   repository.SubscriptionRepository
	stats  repository.RenewalStatisticsRepository
	cache  StatisticsCache
	logger *zap.Logger
	now    func() time.Time
}

// NewRenewalStatisticsService creates a new statistics service. cache may be nil.
func NewRenewalStatisticsService(
	subs repository.SubscriptionRepository,
	stats repository.RenewalStatisticsRepository,
	cache StatisticsCache,
	logger *zap.Logger,
) *RenewalStatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenewalStatisticsService{
		subs:   subs,
		stats:  stats,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides time.Now
func (s *RenewalStatisticsService) SetClock(now func() time.Time) {
	s.now = now
}

// GetDueForRenewal returns active auto-renew subscriptions billed within the next day
func (s *RenewalStatisticsService) GetDueForRenewal(ctx context.Context) ([]*entity.Subscription, error) {
	subs, err := s.subs.ListDueForRenewal(ctx, s.now().Add(24*time.Hour), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list due renewals: %w", err)
	}
	return subs, nil
}

// GetFailedRenewals returns cancelled subscriptions whose last payment failed
// within the window, newest first. academyID 0 covers every academy.
func (s *RenewalStatisticsService) GetFailedRenewals(ctx context.Context, academyID int64, windowDays int) ([]*entity.Subscription, error) {
	subs, err := s.stats.ListFailedRenewals(ctx, s.filter(academyID, windowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to list failed renewals: %w", err)
	}
	return subs, nil
}

// GetRenewalStatistics aggregates renewal outcomes, revenue and upcoming load by subscription type
func (s *RenewalStatisticsService) GetRenewalStatistics(ctx context.Context, academyID int64, windowDays int) (*entity.RenewalStatistics, error) {
	windowDays = normalizeWindow(windowDays)

	if s.cache != nil {
		cached, err := s.cache.GetStatistics(ctx, academyID, windowDays)
		if err != nil {
			s.logger.Warn("failed to read statistics cache", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	now := s.now()
	filter := s.filter(academyID, windowDays)
	counts, err := s.stats.CountRenewalsByType(ctx, filter, now.AddDate(0, 0, upcomingRenewalDays))
	if err != nil {
		return nil, fmt.Errorf("failed to count renewals: %w", err)
	}

	byType := lo.SliceToMap(entity.SubscriptionTypes, func(t entity.SubscriptionType) (entity.SubscriptionType, entity.RenewalTypeCounts) {
		return t, entity.RenewalTypeCounts{Type: t}
	})
	for _, c := range counts {
		byType[c.Type] = c
	}

	stats := &entity.RenewalStatistics{
		AcademyID:       academyID,
		WindowDays:      windowDays,
		TotalSuccessful: lo.SumBy(counts, func(c entity.RenewalTypeCounts) int { return c.Successful }),
		TotalFailed:     lo.SumBy(counts, func(c entity.RenewalTypeCounts) int { return c.Failed }),
		TotalRevenue:    lo.SumBy(counts, func(c entity.RenewalTypeCounts) float64 { return c.Revenue }),
		TotalUpcoming:   lo.SumBy(counts, func(c entity.RenewalTypeCounts) int { return c.Upcoming }),
		ByType:          byType,
		GeneratedAt:     now,
	}
	stats.SuccessRate = SuccessRate(stats.TotalSuccessful, stats.TotalFailed)

	if s.cache != nil {
		if err := s.cache.SetStatistics(ctx, stats); err != nil {
			s.logger.Warn("failed to write statistics cache", zap.Error(err))
		}
	}
	return stats, nil
}

// GetRenewalSuccessRate returns the percentage of successful renewals in the window
func (s *RenewalStatisticsService) GetRenewalSuccessRate(ctx context.Context, academyID int64, windowDays int) (float64, error) {
	stats, err := s.GetRenewalStatistics(ctx, academyID, windowDays)
	if err != nil {
		return 0, err
	}
	return stats.SuccessRate, nil
}

// SuccessRate returns successful/(successful+failed) as a percentage rounded
// to two decimals, or 0 when there were no renewals
func SuccessRate(successful, failed int) float64 {
	total := successful + failed
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*100*100) / 100
}

func (s *RenewalStatisticsService) filter(academyID int64, windowDays int) repository.RenewalFilter {
	now := s.now()
	return repository.RenewalFilter{
		AcademyID: academyID,
		Since:     now.AddDate(0, 0, -normalizeWindow(windowDays)),
		Until:     now,
	}
}

func normalizeWindow(days int) int {
	if days <= 0 {
		return DefaultStatisticsWindowDays
	}
	return days
}
