package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCompleted     = "completed"
	DefaultPaymentMethod = "manual"
	DefaultPaidBy        = "admin"
)

// Payment is the immutable record of one reconciliation batch or manual payout.
type Payment struct {
	PaymentID         string          `bson:"payment_id" json:"payment_id"`
	AffiliateID       string          `bson:"affiliate_id" json:"affiliate_id"`
	AffiliateName     string          `bson:"affiliate_name" json:"affiliate_name"`
	Amount            decimal.Decimal `bson:"amount" json:"amount"`
	OrdersCount       int64           `bson:"orders_count" json:"orders_count"`
	OrderIDs          []string        `bson:"order_ids" json:"order_ids"`
	AttemptedOrderIDs []string        `bson:"attempted_order_ids,omitempty" json:"attempted_order_ids,omitempty"`
	PaymentMethod     string          `bson:"payment_method" json:"payment_method"`
	PaymentReference  string          `bson:"payment_reference" json:"payment_reference"`
	PayoutDestination string          `bson:"payout_destination,omitempty" json:"payout_destination,omitempty"`
	PaidBy            string          `bson:"paid_by" json:"paid_by"`
	PaymentDate       time.Time       `bson:"payment_date" json:"payment_date"`
	Status            string          `bson:"status" json:"status"`
	CreatedAt         time.Time       `bson:"created_at" json:"created_at"`
}

// OrderFailure explains why one order in a batch was not processed.
type OrderFailure struct {
	OrderID string `bson:"order_id" json:"order_id"`
	Error   string `bson:"error" json:"error"`
}
