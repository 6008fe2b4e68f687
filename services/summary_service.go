package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

const periodLayout = "2006-01"

// SummaryService computes per-affiliate aggregates, reading through a SummaryCache.
type SummaryService struct {
	store  repositories.Store
	cache  SummaryCache
	logger *zap.Logger
	now    func() time.Time
}

func NewSummaryService(store repositories.Store, cache SummaryCache, logger *zap.Logger) *SummaryService {
	return &SummaryService{store: store, cache: cache, logger: logger, now: time.Now}
}

// Summarize returns the summary for affiliateID over period ("all" or "YYYY-MM") and
// reports whether it came from the cache or was recalculated. refresh skips the cache read.
func (s *SummaryService) Summarize(ctx context.Context, affiliateID, period string, refresh bool) (*models.AffiliateSummary, string, error) {
	if affiliateID == "" {
		return nil, "", models.MissingField("affiliate_id")
	}
	if period == "" {
		period = models.PeriodAll
	}

	conds := []repositories.Condition{repositories.Eq("affiliate_id", affiliateID)}
	if period != models.PeriodAll {
		start, end, err := PeriodBounds(period)
		if err != nil {
			return nil, "", err
		}
		conds = append(conds,
			repositories.Gte("order_date", start),
			repositories.Lt("order_date", end))
	}

	if !refresh && s.cache != nil {
		cached, err := s.cache.Get(ctx, affiliateID, period)
		if err != nil {
			s.logger.Warn("Summary cache read failed",
				zap.String("affiliate_id", affiliateID),
				zap.String("period", period),
				zap.Error(err))
		} else if cached != nil {
			return cached, models.SummarySourceCache, nil
		}
	}

	var orders []models.Order
	err := s.store.QueryByIndex(ctx, repositories.TableOrders, repositories.IndexQuery{
		Index:      repositories.IndexOrdersByAffiliateDate,
		Conditions: conds,
	}, &orders)
	if err != nil {
		return nil, "", models.StoreUnavailable("query orders", err)
	}

	summary := BuildSummary(affiliateID, period, orders, s.now().UTC())

	if s.cache != nil {
		if err := s.cache.Put(ctx, summary); err != nil {
			s.logger.Warn("Summary cache write failed",
				zap.String("affiliate_id", affiliateID),
				zap.String("period", period),
				zap.Error(err))
		}
	}
	return summary, models.SummarySourceCalculated, nil
}

// PeriodBounds returns the half-open [start, end) order_date range of a YYYY-MM period.
func PeriodBounds(period string) (string, string, error) {
	if len(period) != len(periodLayout) {
		return "", "", models.ValidationError("period", "period must be 'all' or formatted as YYYY-MM")
	}
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return "", "", models.ValidationError("period", "period must be 'all' or formatted as YYYY-MM")
	}
	end := start.AddDate(0, 1, 0)
	return start.Format(utils.DateLayout), end.Format(utils.DateLayout), nil
}

// BuildSummary reduces a snapshot of orders into a summary. Monetary totals are
// rounded to cents; the average is computed from the unrounded revenue.
func BuildSummary(affiliateID, period string, orders []models.Order, now time.Time) *models.AffiliateSummary {
	revenue := decimal.Zero
	commission := decimal.Zero
	customers := make(map[string]struct{})
	for _, o := range orders {
		revenue = revenue.Add(o.InvoiceTotal)
		commission = commission.Add(o.CommissionEarned)
		customers[o.CustomerCode] = struct{}{}
	}

	average := decimal.Zero
	if n := len(orders); n > 0 {
		average = revenue.Div(decimal.NewFromInt(int64(n))).Round(2)
	}

	return &models.AffiliateSummary{
		AffiliateID:       affiliateID,
		Period:            period,
		TotalOrders:       int64(len(orders)),
		TotalRevenue:      revenue.Round(2),
		TotalCommission:   commission.Round(2),
		UniqueCustomers:   int64(len(customers)),
		AverageOrderValue: average,
		UpdatedAt:         now,
	}
}
