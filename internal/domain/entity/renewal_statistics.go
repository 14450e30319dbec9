package entity

import (
	"time"
)

// RenewalTypeCounts aggregates renewal outcomes for one subscription type
type RenewalTypeCounts struct {
	Type       SubscriptionType `json:"type"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Revenue    float64          `json:"revenue"`
	Upcoming   int              `json:"upcoming"`
}

// RenewalStatistics is the dashboard summary over a reporting window
type RenewalStatistics struct {
	AcademyID       int64                                  `json:"academy_id"`
	WindowDays      int                                    `json:"window_days"`
	TotalSuccessful int                                    `json:"total_successful"`
	TotalFailed     int                                    `json:"total_failed"`
	TotalRevenue    float64                                `json:"total_revenue"`
	TotalUpcoming   int                                    `json:"total_upcoming"`
	SuccessRate     float64                                `json:"success_rate"`
	ByType          map[SubscriptionType]RenewalTypeCounts `json:"by_type"`
	GeneratedAt     time.Time                              `json:"generated_at"`
}
