package controllers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/services"
)

// Views render money as JSON numbers for the dashboard. Stored values stay decimal.

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

type orderView struct {
	OrderID          string                `json:"order_id"`
	AffiliateID      string                `json:"affiliate_id"`
	AffiliateName    string                `json:"affiliate_name"`
	CustomerCode     string                `json:"customer_code"`
	StoreName        string                `json:"store_name,omitempty"`
	OrderNumber      string                `json:"order_number"`
	OrderDate        string                `json:"order_date"`
	OrderQuantity    int64                 `json:"order_quantity"`
	InvoiceTotal     float64               `json:"invoice_total"`
	CommissionType   models.CommissionType `json:"commission_type"`
	CommissionRate   float64               `json:"commission_rate"`
	CommissionEarned float64               `json:"commission_earned"`
	Status           models.OrderStatus    `json:"status"`
	ImportID         string                `json:"import_id,omitempty"`
	PaymentID        string                `json:"payment_id,omitempty"`
	PaymentReference string                `json:"payment_reference,omitempty"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// newOrderView hides the internal store name from non-staff callers.
func newOrderView(o models.Order, p *models.Principal) orderView {
	v := orderView{
		OrderID:          o.OrderID,
		AffiliateID:      o.AffiliateID,
		AffiliateName:    o.AffiliateName,
		CustomerCode:     o.CustomerCode,
		OrderNumber:      o.OrderNumber,
		OrderDate:        o.OrderDate,
		OrderQuantity:    o.OrderQuantity,
		InvoiceTotal:     money(o.InvoiceTotal),
		CommissionType:   o.CommissionType,
		CommissionRate:   money(o.CommissionRate),
		CommissionEarned: money(o.CommissionEarned),
		Status:           o.Status,
		ImportID:         o.ImportID,
		PaymentID:        o.PaymentID,
		PaymentReference: o.PaymentReference,
		PaidAt:           o.PaidAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if p.IsAdmin() {
		v.StoreName = o.StoreName
	}
	return v
}

func newOrderViews(orders []models.Order, p *models.Principal) []orderView {
	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = newOrderView(o, p)
	}
	return out
}

type paymentView struct {
	PaymentID         string    `json:"payment_id"`
	AffiliateID       string    `json:"affiliate_id"`
	AffiliateName     string    `json:"affiliate_name"`
	Amount            float64   `json:"amount"`
	OrdersCount       int64     `json:"orders_count"`
	OrderIDs          []string  `json:"order_ids"`
	PaymentMethod     string    `json:"payment_method"`
	PaymentReference  string    `json:"payment_reference"`
	PayoutDestination string    `json:"payout_destination,omitempty"`
	PaidBy            string    `json:"paid_by"`
	PaymentDate       time.Time `json:"payment_date"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

func newPaymentView(p *models.Payment) paymentView {
	ids := p.OrderIDs
	if ids == nil {
		ids = []string{}
	}
	return paymentView{
		PaymentID:         p.PaymentID,
		AffiliateID:       p.AffiliateID,
		AffiliateName:     p.AffiliateName,
		Amount:            money(p.Amount),
		OrdersCount:       p.OrdersCount,
		OrderIDs:          ids,
		PaymentMethod:     p.PaymentMethod,
		PaymentReference:  p.PaymentReference,
		PayoutDestination: p.PayoutDestination,
		PaidBy:            p.PaidBy,
		PaymentDate:       p.PaymentDate,
		Status:            p.Status,
		CreatedAt:         p.CreatedAt,
	}
}

func newPaymentViews(payments []models.Payment) []paymentView {
	out := make([]paymentView, len(payments))
	for i := range payments {
		out[i] = newPaymentView(&payments[i])
	}
	return out
}

type summaryView struct {
	AffiliateID       string    `json:"affiliate_id"`
	Period            string    `json:"period"`
	TotalOrders       int64     `json:"total_orders"`
	TotalRevenue      float64   `json:"total_revenue"`
	TotalCommission   float64   `json:"total_commission"`
	UniqueCustomers   int64     `json:"unique_customers"`
	AverageOrderValue float64   `json:"average_order_value"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newSummaryView(s *models.AffiliateSummary) summaryView {
	return summaryView{
		AffiliateID:       s.AffiliateID,
		Period:            s.Period,
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      money(s.TotalRevenue),
		TotalCommission:   money(s.TotalCommission),
		UniqueCustomers:   s.UniqueCustomers,
		AverageOrderValue: money(s.AverageOrderValue),
		UpdatedAt:         s.UpdatedAt,
	}
}

type configView struct {
	ConfigID       string                `json:"config_id"`
	AffiliateID    string                `json:"affiliate_id"`
	CustomerCode   string                `json:"customer_code"`
	CommissionType models.CommissionType `json:"commission_type"`
	CommissionRate float64               `json:"commission_rate"`
	IsActive       bool                  `json:"is_active"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newConfigView(c *models.CommissionConfig) configView {
	return configView{
		ConfigID:       c.ConfigID,
		AffiliateID:    c.AffiliateID,
		CustomerCode:   c.CustomerCode,
		CommissionType: c.CommissionType,
		CommissionRate: money(c.CommissionRate),
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func newConfigViews(configs []models.CommissionConfig) []configView {
	out := make([]configView, len(configs))
	for i := range configs {
		out[i] = newConfigView(&configs[i])
	}
	return out
}

type leadView struct {
	LeadID           string            `json:"lead_id"`
	AffiliateID      string            `json:"affiliate_id"`
	LinkID           string            `json:"link_id"`
	Status           models.LeadStatus `json:"status"`
	LeadName         string            `json:"lead_name"`
	LeadEmail        string            `json:"lead_email"`
	LeadPhone        string            `json:"lead_phone"`
	ProductLink      string            `json:"product_link"`
	OrderVolume      string            `json:"order_volume"`
	PendingOrders    string            `json:"pending_orders"`
	CommissionAmount *float64          `json:"commission_amount,omitempty"`
	AdminNotes       string            `json:"admin_notes,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func newLeadView(l models.Lead) leadView {
	v := leadView{
		LeadID:          l.LeadID,
		AffiliateID:     l.AffiliateID,
		LinkID:          l.LinkID,
		Status:          l.Status,
		LeadName:        l.LeadName,
		LeadEmail:       l.LeadEmail,
		LeadPhone:       l.LeadPhone,
		ProductLink:     l.ProductLink,
		OrderVolume:     l.OrderVolume,
		PendingOrders:   l.PendingOrders,
		AdminNotes:      l.AdminNotes,
		RejectionReason: l.RejectionReason,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.CommissionAmount != nil {
		amount := money(*l.CommissionAmount)
		v.CommissionAmount = &amount
	}
	return v
}

func newLeadViews(leads []models.Lead) []leadView {
	out := make([]leadView, len(leads))
	for i, l := range leads {
		out[i] = newLeadView(l)
	}
	return out
}

func newGroupedLeadViews(g *services.LeadsByAffiliate) map[string][]leadView {
	out := make(map[string][]leadView, len(g.Leads))
	for aff, leads := range g.Leads {
		out[aff] = newLeadViews(leads)
	}
	return out
}
