package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnyCustomer is the customer code of an affiliate-wide default configuration.
const AnyCustomer = "*"

// CommissionConfig is the rate contract between an affiliate and one customer.
type CommissionConfig struct {
	ConfigID       string          `bson:"config_id" json:"config_id"`
	AffiliateID    string          `bson:"affiliate_id" json:"affiliate_id"`
	CustomerCode   string          `bson:"customer_code" json:"customer_code"`
	CommissionType CommissionType  `bson:"commission_type" json:"commission_type"`
	CommissionRate decimal.Decimal `bson:"commission_rate" json:"commission_rate"`
	IsActive       bool            `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

// ConfigID joins the affiliate and customer into the registry key.
func ConfigID(affiliateID, customerCode string) string {
	return affiliateID + ":" + customerCode
}
