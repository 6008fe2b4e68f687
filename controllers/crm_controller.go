package controllers

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/services"
)

// CRMController serves the commission engine: orders, configs, summaries and payments.
type CRMController struct {
	orders    *services.OrderService
	configs   *services.ConfigRegistry
	summaries *services.SummaryService
	payments  *services.PaymentService
	leads     *services.LeadService
	logger    *zap.Logger
}

func NewCRMController(orders *services.OrderService, configs *services.ConfigRegistry, summaries *services.SummaryService, payments *services.PaymentService, leads *services.LeadService, logger *zap.Logger) *CRMController {
	return &CRMController{
		orders:    orders,
		configs:   configs,
		summaries: summaries,
		payments:  payments,
		leads:     leads,
		logger:    logger,
	}
}

func (cc *CRMController) actions() map[string]actionHandler {
	return map[string]actionHandler{
		"crm/orders":             {access: accessAffiliate, handle: cc.ListOrders},
		"crm/orders/create":      {method: "POST", access: accessAdmin, handle: cc.CreateOrder},
		"crm/orders/import":      {method: "POST", access: accessAdmin, handle: cc.ImportOrders},
		"crm/orders/outstanding": {access: accessAffiliate, handle: cc.ListOutstanding},
		"crm/orders/mark-paid":   {method: "POST", access: accessAdmin, handle: cc.MarkPaid},
		"crm/config":             {access: accessAffiliate, handle: cc.GetConfig},
		"crm/config/set":         {method: "POST", access: accessAdmin, handle: cc.SetConfig},
		"crm/summary":            {access: accessAffiliate, handle: cc.Summary},
		"crm/leads":              {access: accessAffiliate, handle: cc.Leads},
		"crm/payments/history":   {access: accessAffiliate, handle: cc.PaymentHistory},
		"crm/payments/record":    {method: "POST", access: accessAdmin, handle: cc.RecordPayment},
	}
}

func (cc *CRMController) ListOrders(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}

	orders, err := cc.orders.ListOrders(c.Request().Context(), services.OrderQuery{
		AffiliateID: affiliateID,
		StartDate:   req.String("start_date"),
		EndDate:     req.String("end_date"),
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"orders":       newOrderViews(orders, req.principal),
		"count":        len(orders),
		"affiliate_id": affiliateID,
	}), nil
}

// CreateOrder records one order. Without explicit commission terms the affiliate's
// configuration for the customer applies, then the service default.
func (cc *CRMController) CreateOrder(c echo.Context, req *actionRequest) (*actionResult, error) {
	ctx := c.Request().Context()

	var in services.OrderInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}

	if !in.HasCommissionTerms() && in.AffiliateID != "" {
		customer := in.CustomerCode.String()
		if customer == "" {
			customer = in.CustomerNumber.String()
		}
		cfg, err := cc.configs.Resolve(ctx, in.AffiliateID.String(), customer)
		switch {
		case err == nil:
			in.ApplyConfig(cfg)
		case !models.IsKind(err, models.KindNotFound):
			return nil, err
		}
	}

	order, err := cc.orders.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	return created("Order created successfully", map[string]interface{}{
		"order_id": order.OrderID,
		"order":    newOrderView(*order, req.principal),
	}), nil
}

type importRequest struct {
	Orders     []json.RawMessage `json:"orders"`
	ImportedBy string            `json:"imported_by"`
}

// ImportOrders bulk-loads orders. Bad rows are reported without failing the batch.
func (cc *CRMController) ImportOrders(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in importRequest
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if in.ImportedBy == "" {
		in.ImportedBy = req.principal.Email
	}

	result, err := cc.orders.ImportOrders(c.Request().Context(), in.Orders, in.ImportedBy)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Imported %d of %d orders", result.RecordsSuccess, result.RecordsProcessed)
	return okMessage(msg, result), nil
}

func (cc *CRMController) ListOutstanding(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	result, err := cc.payments.ListOutstanding(c.Request().Context(), affiliateID)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"affiliate_id": result.AffiliateID,
		"orders":       newOrderViews(result.Orders, req.principal),
		"count":        len(result.Orders),
		"total_owed":   money(result.TotalOwed),
	}), nil
}

// MarkPaid reconciles a payment against the listed orders, or every outstanding order.
func (cc *CRMController) MarkPaid(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.ReconcileInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if in.PaidBy == "" && req.principal != nil {
		in.PaidBy = req.principal.Email
	}

	result, err := cc.payments.Reconcile(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Marked %d orders as paid", result.OrdersUpdated)
	return okMessage(msg, map[string]interface{}{
		"payment_id":       result.Payment.PaymentID,
		"orders_attempted": result.OrdersAttempted,
		"orders_updated":   result.OrdersUpdated,
		"total_amount":     money(result.Payment.Amount),
		"failed_orders":    result.FailedOrders,
		"payment":          newPaymentView(result.Payment),
	}), nil
}

func (cc *CRMController) GetConfig(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}

	configs, err := cc.configs.Get(c.Request().Context(), affiliateID, req.String("customer_code"), limit)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"configs": newConfigViews(configs),
		"count":   len(configs),
	}), nil
}

func (cc *CRMController) SetConfig(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.ConfigInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	cfg, err := cc.configs.Set(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}
	return okMessage("Configuration saved", map[string]interface{}{
		"config": newConfigView(cfg),
	}), nil
}

func (cc *CRMController) Summary(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}

	summary, source, err := cc.summaries.Summarize(c.Request().Context(), affiliateID, req.String("period"), req.Bool("refresh"))
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"summary": newSummaryView(summary),
		"source":  source,
	}), nil
}

// Leads lists one affiliate's leads, or every lead grouped by affiliate for admins.
func (cc *CRMController) Leads(c echo.Context, req *actionRequest) (*actionResult, error) {
	ctx := c.Request().Context()
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}

	if affiliateID == "" {
		grouped, err := cc.leads.GroupedLeads(ctx)
		if err != nil {
			return nil, err
		}
		return ok(map[string]interface{}{
			"leads_by_affiliate": newGroupedLeadViews(grouped),
			"total_count":        grouped.TotalCount,
		}), nil
	}

	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	leads, err := cc.leads.LeadsForAffiliate(ctx, affiliateID, req.String("status"), limit)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"leads":        newLeadViews(leads),
		"count":        len(leads),
		"affiliate_id": affiliateID,
	}), nil
}

func (cc *CRMController) PaymentHistory(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}

	payments, err := cc.payments.PaymentHistory(c.Request().Context(), affiliateID, limit)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"payments": newPaymentViews(payments),
		"count":    len(payments),
	}), nil
}

func (cc *CRMController) RecordPayment(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.RecordPaymentInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if in.PaidBy == "" && req.principal != nil {
		in.PaidBy = req.principal.Email
	}

	payment, err := cc.payments.RecordPayment(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}
	return created("Payment recorded successfully", map[string]interface{}{
		"payment_id": payment.PaymentID,
		"payment":    newPaymentView(payment),
	}), nil
}
