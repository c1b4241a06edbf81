package service

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const defaultRevenueDays = 30

type StatsService struct {
	numbers       PhoneNumberRepository
	subscriptions SubscriptionRepository
	transactions  PaymentTransactionRepository
	location      *time.Location
	now           func() time.Time
}

func NewStatsService(numbers PhoneNumberRepository, subscriptions SubscriptionRepository, transactions PaymentTransactionRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{
		numbers:       numbers,
		subscriptions: subscriptions,
		transactions:  transactions,
		location:      loc,
		now:           time.Now,
	}
}

func (s *StatsService) AdminStats(ctx context.Context, days int) (*models.AdminStats, error) {
	numbers, err := s.numbers.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count phone numbers: %w", err)
	}
	subs, err := s.subscriptions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	revenue, err := s.Revenue(ctx, days)
	if err != nil {
		return nil, err
	}

	return &models.AdminStats{
		NumbersByStatus:       numbers,
		SubscriptionsByStatus: subs,
		Revenue:               *revenue,
	}, nil
}

// Revenue aggregates successful payments per local calendar day over the last days days,
// including today, and fits a linear trend through the daily totals.
func (s *StatsService) Revenue(ctx context.Context, days int) (*models.RevenueStats, error) {
	if days <= 0 {
		days = defaultRevenueDays
	}

	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	since := today.AddDate(0, 0, -(days - 1))

	txs, err := s.transactions.SuccessfulSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	series := make([]models.RevenuePoint, days)
	index := make(map[string]int, days)
	for i := range series {
		day := since.AddDate(0, 0, i)
		series[i] = models.RevenuePoint{Day: day}
		index[day.Format("2006-01-02")] = i
	}

	result := &models.RevenueStats{Days: days}
	for _, tx := range txs {
		i, ok := index[tx.TransactionDate.In(s.location).Format("2006-01-02")]
		if !ok {
			continue
		}
		series[i].Amount += tx.Amount
		result.Total += tx.Amount
		result.Transactions++
	}
	result.Series = series

	xs := make([]float64, days)
	ys := make([]float64, days)
	for i, p := range series {
		xs[i] = float64(i)
		ys[i] = p.Amount
	}

	result.DailyMean = stat.Mean(ys, nil)
	if days > 1 {
		result.DailyStdDev = stat.StdDev(ys, nil)
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		result.TrendPerDay = beta
		result.NextDayTrend = alpha + beta*float64(days)
	} else {
		result.NextDayTrend = result.DailyMean
	}
	return result, nil
}
