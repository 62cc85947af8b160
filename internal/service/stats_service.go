package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"freshmarket/internal/models"
	"freshmarket/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache keys for dashboard stats, invalidated by the order events worker
const (
	StatsSummaryCacheKey = "stats:summary"
	StatsTrendCacheKey   = "stats:trend"
)

// StatsStore is the aggregate-query surface the stats service depends on
type StatsStore interface {
	SumOrderTotals(ctx context.Context, from, to *time.Time) (decimal.Decimal, error)
	CountOrders(ctx context.Context, status string, from, to *time.Time) (int, error)
	CountProducts(ctx context.Context) (int, error)
}

// StatsCache is a read-through JSON cache for computed stats
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService computes dashboard statistics over committed orders. Results
// are cached with a short TTL; placements and confirmations invalidate the
// cache through the events worker so the dashboard converges promptly.
type StatsService struct {
	store    StatsStore
	cache    StatsCache
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(store StatsStore, cache StatsCache, cacheTTL time.Duration) *StatsService {
	return &StatsService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// Summary returns the headline dashboard numbers with week-over-week changes
func (s *StatsService) Summary(ctx context.Context) (*models.StatsSummary, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.Summary")
	defer span.End()

	if s.cache != nil {
		var cached models.StatsSummary
		if hit, err := s.cache.GetJSON(ctx, StatsSummaryCacheKey, &cached); err != nil {
			s.logger.Warn("Stats cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	now := s.now()
	thisWeekStart := startOfDay(now.AddDate(0, 0, -6))
	lastWeekStart := thisWeekStart.AddDate(0, 0, -7)
	lastWeekEnd := thisWeekStart.Add(-time.Second)

	totalSales, err := s.store.SumOrderTotals(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sum order totals: %w", err)
	}
	thisWeekSales, err := s.store.SumOrderTotals(ctx, &thisWeekStart, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sum weekly totals: %w", err)
	}
	lastWeekSales, err := s.store.SumOrderTotals(ctx, &lastWeekStart, &lastWeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to sum last week totals: %w", err)
	}

	totalOrders, err := s.store.CountOrders(ctx, "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	thisWeekOrders, err := s.store.CountOrders(ctx, "", &thisWeekStart, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count weekly orders: %w", err)
	}
	lastWeekOrders, err := s.store.CountOrders(ctx, "", &lastWeekStart, &lastWeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count last week orders: %w", err)
	}
	pendingOrders, err := s.store.CountOrders(ctx, models.OrderStatusPending, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending orders: %w", err)
	}
	lastWeekPending, err := s.store.CountOrders(ctx, models.OrderStatusPending, &lastWeekStart, &lastWeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count last week pending orders: %w", err)
	}
	totalProducts, err := s.store.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	summary := &models.StatsSummary{
		TotalSales:    totalSales,
		TotalOrders:   totalOrders,
		PendingOrders: pendingOrders,
		TotalProducts: totalProducts,
		SalesChange:   changePct(thisWeekSales.InexactFloat64(), lastWeekSales.InexactFloat64()),
		OrdersChange:  changePct(float64(thisWeekOrders), float64(lastWeekOrders)),
		PendingChange: changePct(float64(pendingOrders), float64(lastWeekPending)),
	}

	s.cacheStats(ctx, StatsSummaryCacheKey, summary)
	return summary, nil
}

// Trend returns the daily sales totals for the last 7 days
func (s *StatsService) Trend(ctx context.Context) ([]models.DailySales, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.Trend")
	defer span.End()

	if s.cache != nil {
		var cached []models.DailySales
		if hit, err := s.cache.GetJSON(ctx, StatsTrendCacheKey, &cached); err != nil {
			s.logger.Warn("Stats cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	const days = 7
	today := s.now()
	trend := make([]models.DailySales, 0, days)

	for i := days - 1; i >= 0; i-- {
		dayStart := startOfDay(today.AddDate(0, 0, -i))
		dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Second)

		sales, err := s.store.SumOrderTotals(ctx, &dayStart, &dayEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to sum daily totals: %w", err)
		}

		trend = append(trend, models.DailySales{
			Date:  fmt.Sprintf("%d/%d", dayStart.Month(), dayStart.Day()),
			Sales: sales,
		})
	}

	s.cacheStats(ctx, StatsTrendCacheKey, trend)
	return trend, nil
}

func (s *StatsService) cacheStats(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("Stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// changePct computes week-over-week percentage change, one decimal place
func changePct(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	pct := (current - previous) / previous * 100
	return math.Round(pct*10) / 10
}
