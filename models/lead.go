package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeadStatus string

const (
	LeadPending  LeadStatus = "pending"
	LeadApproved LeadStatus = "approved"
	LeadRejected LeadStatus = "rejected"
)

// Lead is a prospect submitted through an affiliate's form link.
type Lead struct {
	LeadID           string           `bson:"lead_id" json:"lead_id"`
	AffiliateID      string           `bson:"affiliate_id" json:"affiliate_id"`
	LinkID           string           `bson:"link_id" json:"link_id"`
	Status           LeadStatus       `bson:"status" json:"status"`
	LeadName         string           `bson:"lead_name" json:"lead_name"`
	LeadEmail        string           `bson:"lead_email" json:"lead_email"`
	LeadPhone        string           `bson:"lead_phone" json:"lead_phone"`
	ProductLink      string           `bson:"product_link" json:"product_link"`
	OrderVolume      string           `bson:"order_volume" json:"order_volume"`
	PendingOrders    string           `bson:"pending_orders" json:"pending_orders"`
	CommissionAmount *decimal.Decimal `bson:"commission_amount,omitempty" json:"commission_amount,omitempty"`
	AdminNotes       string           `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	RejectionReason  string           `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at" json:"updated_at"`
}

// LeadData is the form payload filled in by a prospect.
type LeadData struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	ProductLink   string `json:"product_link"`
	OrderVolume   string `json:"order_volume"`
	PendingOrders string `json:"pending_orders"`
}

// AffiliateLink is the form link handed out by an affiliate.
type AffiliateLink struct {
	LinkID          string    `bson:"link_id" json:"link_id"`
	AffiliateID     string    `bson:"affiliate_id" json:"affiliate_id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	ClickCount      int64     `bson:"click_count" json:"click_count"`
	LeadCount       int64     `bson:"lead_count" json:"lead_count"`
	ConversionCount int64     `bson:"conversion_count" json:"conversion_count"`
	Status          string    `bson:"status" json:"status"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}
