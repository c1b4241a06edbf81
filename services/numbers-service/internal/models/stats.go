package models

import "time"

type RevenuePoint struct {
	Day    time.Time `json:"day"`
	Amount float64   `json:"amount"`
}

type AdminStats struct {
	NumbersByStatus       map[PhoneNumberStatus]int64  `json:"numbers_by_status"`
	SubscriptionsByStatus map[SubscriptionStatus]int64 `json:"subscriptions_by_status"`
	Revenue               RevenueStats                 `json:"revenue"`
}

type RevenueStats struct {
	Days         int            `json:"days"`
	Transactions int            `json:"transactions"`
	Total        float64        `json:"total"`
	DailyMean    float64        `json:"daily_mean"`
	DailyStdDev  float64        `json:"daily_std_dev"`
	TrendPerDay  float64        `json:"trend_per_day"`
	NextDayTrend float64        `json:"next_day_forecast"`
	Series       []RevenuePoint `json:"series"`
}

type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPage(page, limit int, total int64) Page {
	page, limit = NormalizePage(page, limit)
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Page{Page: page, Limit: limit, Total: total, Pages: pages}
}

// NormalizePage clamps page to >= 1 and limit to [1, 100], defaulting limit to 20.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
