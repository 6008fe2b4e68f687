package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodAll is the lifetime summary period token.
const PeriodAll = "all"

// Summary sources reported to callers.
const (
	SummarySourceCache      = "cache"
	SummarySourceCalculated = "calculated"
)

// AffiliateSummary is a cached aggregate for one affiliate and period.
type AffiliateSummary struct {
	AffiliateID       string          `bson:"affiliate_id" json:"affiliate_id"`
	Period            string          `bson:"period" json:"period"`
	TotalOrders       int64           `bson:"total_orders" json:"total_orders"`
	TotalRevenue      decimal.Decimal `bson:"total_revenue" json:"total_revenue"`
	TotalCommission   decimal.Decimal `bson:"total_commission" json:"total_commission"`
	UniqueCustomers   int64           `bson:"unique_customers" json:"unique_customers"`
	AverageOrderValue decimal.Decimal `bson:"average_order_value" json:"average_order_value"`
	Stale             bool            `bson:"stale" json:"-"`
	UpdatedAt         time.Time       `bson:"updated_at" json:"updated_at"`
}
