package controllers

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/services"
)

// LeadController serves affiliate form links and the leads they collect.
type LeadController struct {
	leads  *services.LeadService
	logger *zap.Logger
}

func NewLeadController(leads *services.LeadService, logger *zap.Logger) *LeadController {
	return &LeadController{leads: leads, logger: logger}
}

func (lc *LeadController) actions() map[string]actionHandler {
	return map[string]actionHandler{
		"affiliate/get-link":    {access: accessAffiliate, handle: lc.GetLink},
		"affiliate/create-link": {method: "POST", access: accessAffiliate, handle: lc.CreateLink},
		"affiliate/link-qr":     {access: accessAffiliate, handle: lc.LinkQRCode},
		"affiliate/submit-lead": {method: "POST", access: accessPublic, handle: lc.SubmitLead},
		"admin/leads":           {access: accessAdmin, handle: lc.ListLeads},
		"admin/approve-lead":    {method: "POST", access: accessAdmin, handle: lc.DecideLead},
	}
}

func (lc *LeadController) GetLink(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	res, err := lc.leads.GetLink(c.Request().Context(), affiliateID)
	if err != nil {
		return nil, err
	}
	return ok(res), nil
}

// CreateLink is idempotent: an affiliate keeps its first link.
func (lc *LeadController) CreateLink(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	userID := req.String("user_id")
	if userID == "" && !req.isAdmin() {
		userID = req.principal.UserID
	}

	res, err := lc.leads.CreateLink(c.Request().Context(), affiliateID, userID)
	if err != nil {
		return nil, err
	}
	if res.Created {
		return created("Affiliate link created", res), nil
	}
	return okMessage("Affiliate link already exists", res), nil
}

func (lc *LeadController) LinkQRCode(c echo.Context, req *actionRequest) (*actionResult, error) {
	affiliateID, err := req.Affiliate(req.String("affiliate_id"))
	if err != nil {
		return nil, err
	}
	formURL, qr, err := lc.leads.LinkQRCode(c.Request().Context(), affiliateID)
	if err != nil {
		return nil, err
	}
	return ok(map[string]string{
		"form_url": formURL,
		"qr_code":  qr,
	}), nil
}

// SubmitLead accepts the public affiliate form.
func (lc *LeadController) SubmitLead(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.SubmitLeadInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	lead, err := lc.leads.SubmitLead(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}
	return created("Lead submitted successfully", map[string]interface{}{
		"lead_id": lead.LeadID,
	}), nil
}

func (lc *LeadController) ListLeads(c echo.Context, req *actionRequest) (*actionResult, error) {
	limit, err := req.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	leads, err := lc.leads.ListLeads(c.Request().Context(), req.String("status"), limit)
	if err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{
		"leads": newLeadViews(leads),
		"count": len(leads),
	}), nil
}

func (lc *LeadController) DecideLead(c echo.Context, req *actionRequest) (*actionResult, error) {
	var in services.LeadDecision
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	status, err := lc.leads.DecideLead(c.Request().Context(), in)
	if err != nil {
		return nil, err
	}
	return okMessage("Lead "+string(status), map[string]interface{}{
		"lead_id": in.LeadID,
		"status":  status,
	}), nil
}
