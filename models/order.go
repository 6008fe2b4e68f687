package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType is the pricing model applied to an order.
type CommissionType string

const (
	CommissionPerOrder   CommissionType = "per_order"
	CommissionPercentage CommissionType = "percentage"
)

// OrderStatus tracks an order from import to payout.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderApproved OrderStatus = "approved"
	OrderPaid     OrderStatus = "paid"
)

// Outstanding reports whether the order still awaits payment.
func (s OrderStatus) Outstanding() bool {
	return s == OrderPending || s == OrderApproved
}

// Order is one affiliate-attributed sale.
type Order struct {
	OrderID          string          `bson:"order_id" json:"order_id"`
	AffiliateID      string          `bson:"affiliate_id" json:"affiliate_id"`
	AffiliateName    string          `bson:"affiliate_name" json:"affiliate_name"`
	CustomerCode     string          `bson:"customer_code" json:"customer_code"`
	StoreName        string          `bson:"store_name" json:"store_name,omitempty"`
	OrderNumber      string          `bson:"order_number" json:"order_number"`
	OrderDate        string          `bson:"order_date" json:"order_date"`
	OrderQuantity    int64           `bson:"order_quantity" json:"order_quantity"`
	InvoiceTotal     decimal.Decimal `bson:"invoice_total" json:"invoice_total"`
	CommissionType   CommissionType  `bson:"commission_type" json:"commission_type"`
	CommissionRate   decimal.Decimal `bson:"commission_rate" json:"commission_rate"`
	CommissionEarned decimal.Decimal `bson:"commission_earned" json:"commission_earned"`
	Status           OrderStatus     `bson:"status" json:"status"`
	ImportID         string          `bson:"import_id,omitempty" json:"import_id,omitempty"`
	PaymentID        string          `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	PaymentReference string          `bson:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	PaidAt           *time.Time      `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updated_at"`
}
