package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
)

var summaryNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestSummaryService(store repositories.Store, cache SummaryCache) *SummaryService {
	svc := NewSummaryService(store, cache, zap.NewNop())
	svc.now = fixedClock(summaryNow)
	return svc
}

func TestPeriodBounds(t *testing.T) {
	start, end, err := PeriodBounds("2024-12")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-01", start)
	assert.Equal(t, "2025-01-01", end)

	start, end, err = PeriodBounds("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", start)
	assert.Equal(t, "2024-03-01", end)

	for _, bad := range []string{"2024-13", "2024-1", "24-12", "2024/12", "december", "2024-12-01"} {
		_, _, err := PeriodBounds(bad)
		assert.True(t, models.IsKind(err, models.KindValidation), bad)
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary("AFF-1", models.PeriodAll, nil, summaryNow)
	assert.Equal(t, int64(0), s.TotalOrders)
	assert.True(t, s.AverageOrderValue.IsZero())
	assert.True(t, s.TotalRevenue.IsZero())
	assert.Equal(t, int64(0), s.UniqueCustomers)
}

func TestBuildSummaryAverageAndRounding(t *testing.T) {
	orders := []models.Order{
		{CustomerCode: "C1", InvoiceTotal: dec("10.005"), CommissionEarned: dec("1.0005")},
		{CustomerCode: "C1", InvoiceTotal: dec("20"), CommissionEarned: dec("2")},
		{CustomerCode: "C2", InvoiceTotal: dec("0.001"), CommissionEarned: dec("0")},
	}
	s := BuildSummary("AFF-1", "2024-12", orders, summaryNow)

	assert.Equal(t, int64(3), s.TotalOrders)
	assert.Equal(t, int64(2), s.UniqueCustomers)
	assert.Equal(t, "30.01", s.TotalRevenue.StringFixed(2))
	assert.Equal(t, "3.00", s.TotalCommission.StringFixed(2))
	// 30.006 / 3 = 10.002
	assert.True(t, dec("10").Equal(s.AverageOrderValue), s.AverageOrderValue.String())
}

func TestSummarizeMonthExcludesNextMonth(t *testing.T) {
	store := newTestStore()
	putOrder(t, store, models.Order{OrderID: "O1", AffiliateID: "AFF-1", CustomerCode: "C1", OrderDate: "2024-12-01", InvoiceTotal: dec("100"), CommissionEarned: dec("10")})
	putOrder(t, store, models.Order{OrderID: "O2", AffiliateID: "AFF-1", CustomerCode: "C2", OrderDate: "2024-12-31", InvoiceTotal: dec("50"), CommissionEarned: dec("5")})
	putOrder(t, store, models.Order{OrderID: "O3", AffiliateID: "AFF-1", CustomerCode: "C3", OrderDate: "2025-01-01", InvoiceTotal: dec("999"), CommissionEarned: dec("99")})
	putOrder(t, store, models.Order{OrderID: "O4", AffiliateID: "AFF-2", CustomerCode: "C1", OrderDate: "2024-12-10", InvoiceTotal: dec("70"), CommissionEarned: dec("7")})

	svc := newTestSummaryService(store, nil)
	s, source, err := svc.Summarize(context.Background(), "AFF-1", "2024-12", false)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCalculated, source)
	assert.Equal(t, int64(2), s.TotalOrders)
	assert.True(t, dec("150").Equal(s.TotalRevenue))
	assert.True(t, dec("15").Equal(s.TotalCommission))
	assert.True(t, dec("75").Equal(s.AverageOrderValue))

	all, _, err := svc.Summarize(context.Background(), "AFF-1", "", false)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodAll, all.Period)
	assert.Equal(t, int64(3), all.TotalOrders)
	assert.Equal(t, int64(3), all.UniqueCustomers)
}

func TestSummarizeValidatesInput(t *testing.T) {
	svc := newTestSummaryService(newTestStore(), nil)

	_, _, err := svc.Summarize(context.Background(), "", "all", false)
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, _, err = svc.Summarize(context.Background(), "AFF-1", "2024-13", false)
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestSummarizeUsesStoreCacheUntilInvalidated(t *testing.T) {
	store := newTestStore()
	cache := NewStoreSummaryCache(store)
	putOrder(t, store, models.Order{OrderID: "O1", AffiliateID: "AFF-1", CustomerCode: "C1", OrderDate: "2024-12-01", InvoiceTotal: dec("100"), CommissionEarned: dec("10")})

	svc := newTestSummaryService(store, cache)
	first, source, err := svc.Summarize(context.Background(), "AFF-1", "2024-12", false)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCalculated, source)

	second, source, err := svc.Summarize(context.Background(), "AFF-1", "2024-12", false)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCache, source)
	assert.True(t, first.TotalRevenue.Equal(second.TotalRevenue))

	orders := newTestOrderService(store, cache, nil)
	_, err = orders.CreateOrder(context.Background(), decodeInput(t, `{
		"affiliate_id": "AFF-1", "customer_code": "C2", "order_number": "2",
		"order_date": "2024-12-15", "invoice_total": 50
	}`))
	require.NoError(t, err)

	third, source, err := svc.Summarize(context.Background(), "AFF-1", "2024-12", false)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCalculated, source)
	assert.Equal(t, int64(2), third.TotalOrders)
	assert.True(t, dec("150").Equal(third.TotalRevenue))
}

func TestSummarizeRefreshBypassesCache(t *testing.T) {
	store := newTestStore()
	cache := NewStoreSummaryCache(store)
	svc := newTestSummaryService(store, cache)

	_, _, err := svc.Summarize(context.Background(), "AFF-1", models.PeriodAll, false)
	require.NoError(t, err)

	_, source, err := svc.Summarize(context.Background(), "AFF-1", models.PeriodAll, true)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCalculated, source)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string, string) (*models.AffiliateSummary, error) {
	return nil, errors.New("cache down")
}

func (failingCache) Put(context.Context, *models.AffiliateSummary) error {
	return errors.New("cache down")
}

func (failingCache) Invalidate(context.Context, string, ...string) error {
	return errors.New("cache down")
}

func TestSummarizeSurvivesCacheFailures(t *testing.T) {
	store := newTestStore()
	putOrder(t, store, models.Order{OrderID: "O1", AffiliateID: "AFF-1", CustomerCode: "C1", OrderDate: "2024-12-01", InvoiceTotal: dec("40"), CommissionEarned: dec("4")})

	svc := newTestSummaryService(store, failingCache{})
	s, source, err := svc.Summarize(context.Background(), "AFF-1", models.PeriodAll, false)
	require.NoError(t, err)
	assert.Equal(t, models.SummarySourceCalculated, source)
	assert.Equal(t, int64(1), s.TotalOrders)
}

func TestPeriodsForDates(t *testing.T) {
	assert.Equal(t, []string{"all", "2024-12", "2025-01"}, periodsForDates("2024-12-01", "2024-12-31", "2025-01-01", ""))
}
