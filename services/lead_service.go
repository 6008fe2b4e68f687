package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

const (
	defaultLeadListLimit = 100
	groupedLeadScanLimit = 500
	linkStatusActive     = "active"
	qrCodeSize           = 256
)

// SubmitLeadInput is the affiliate form submission. Ref and AffiliateLinkID are
// accepted aliases of LinkID, and Lead of LeadData.
type SubmitLeadInput struct {
	LinkID          string           `json:"link_id"`
	Ref             string           `json:"ref"`
	AffiliateLinkID string           `json:"affiliate_link_id"`
	LeadData        *models.LeadData `json:"lead_data"`
	Lead            *models.LeadData `json:"lead"`
}

// LeadDecision approves or rejects a pending lead.
type LeadDecision struct {
	LeadID           string        `json:"lead_id"`
	Status           string        `json:"status"`
	CommissionAmount utils.Numeric `json:"commission_amount"`
	AdminNotes       string        `json:"admin_notes"`
	RejectionReason  string        `json:"rejection_reason"`
}

// LinkResult is an affiliate link with its shareable form URL.
type LinkResult struct {
	Link    *models.AffiliateLink `json:"link"`
	FormURL string                `json:"form_url"`
	Created bool                  `json:"created"`
}

// LeadsByAffiliate is the lead listing grouped by affiliate.
type LeadsByAffiliate struct {
	Leads      map[string][]models.Lead `json:"leads_by_affiliate"`
	TotalCount int                      `json:"total_count"`
}

type LeadService struct {
	store       repositories.Store
	notifier    Notifier
	events      EventPublisher
	logger      *zap.Logger
	formBaseURL string
	now         func() time.Time
}

func NewLeadService(store repositories.Store, notifier Notifier, events EventPublisher, formBaseURL string, logger *zap.Logger) *LeadService {
	return &LeadService{
		store:       store,
		notifier:    notifier,
		events:      publisherOrNop(events),
		logger:      logger,
		formBaseURL: formBaseURL,
		now:         time.Now,
	}
}

// FormURL is the public lead form address for a link.
func (s *LeadService) FormURL(linkID string) string {
	return s.formBaseURL + "?ref=" + linkID
}

// GetLink returns the newest link of an affiliate.
func (s *LeadService) GetLink(ctx context.Context, affiliateID string) (*LinkResult, error) {
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	link, err := s.latestLink(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, models.NotFound("no affiliate link found")
	}
	return &LinkResult{Link: link, FormURL: s.FormURL(link.LinkID)}, nil
}

// CreateLink returns the affiliate's existing link or creates the first one.
func (s *LeadService) CreateLink(ctx context.Context, affiliateID, userID string) (*LinkResult, error) {
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	existing, err := s.latestLink(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &LinkResult{Link: existing, FormURL: s.FormURL(existing.LinkID)}, nil
	}

	link := &models.AffiliateLink{
		LinkID:      utils.GenerateID(utils.LinkPrefix),
		AffiliateID: affiliateID,
		UserID:      orDefault(userID, affiliateID),
		Status:      linkStatusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Put(ctx, repositories.TableLinks, repositories.Key{"link_id": link.LinkID}, link); err != nil {
		return nil, models.StoreUnavailable("create link", err)
	}

	s.logger.Info("Affiliate link created", zap.String("link_id", link.LinkID), zap.String("affiliate_id", affiliateID))
	return &LinkResult{Link: link, FormURL: s.FormURL(link.LinkID), Created: true}, nil
}

// LinkQRCode renders the form URL of the affiliate's link as a PNG data URL.
func (s *LeadService) LinkQRCode(ctx context.Context, affiliateID string) (string, string, error) {
	res, err := s.GetLink(ctx, affiliateID)
	if err != nil {
		return "", "", err
	}
	code, err := utils.QRCodeDataURL(res.FormURL, qrCodeSize)
	if err != nil {
		return "", "", &models.AppError{Kind: models.KindInternal, Message: "render QR code", Err: err}
	}
	return res.FormURL, code, nil
}

func (s *LeadService) latestLink(ctx context.Context, affiliateID string) (*models.AffiliateLink, error) {
	var links []models.AffiliateLink
	err := s.store.QueryByIndex(ctx, repositories.TableLinks, repositories.IndexQuery{
		Index:      repositories.IndexLinksByAffiliate,
		Conditions: []repositories.Condition{repositories.Eq("affiliate_id", affiliateID)},
		SortKey:    "created_at",
		Descending: true,
		Limit:      1,
	}, &links)
	if err != nil {
		return nil, models.StoreUnavailable("query links", err)
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0], nil
}

// SubmitLead stores a prospect against the link's affiliate. A ref that is not a
// link id is tried as an affiliate id.
func (s *LeadService) SubmitLead(ctx context.Context, in SubmitLeadInput) (*models.Lead, error) {
	linkID := strings.TrimSpace(in.LinkID)
	if linkID == "" {
		linkID = strings.TrimSpace(orDefault(in.Ref, in.AffiliateLinkID))
	}
	data := in.LeadData
	if data == nil {
		data = in.Lead
	}
	if linkID == "" {
		return nil, models.MissingField("link_id")
	}
	if data == nil {
		return nil, models.MissingField("lead_data")
	}
	if strings.TrimSpace(data.Name) == "" {
		return nil, models.MissingField("name")
	}
	email, err := utils.SanitizeEmail(data.Email)
	if err != nil {
		if strings.TrimSpace(data.Email) == "" {
			return nil, models.MissingField("email")
		}
		return nil, models.ValidationError("email", err.Error())
	}

	affiliateID, linked, err := s.resolveLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lead := &models.Lead{
		LeadID:        utils.GenerateID(utils.LeadPrefix),
		AffiliateID:   affiliateID,
		LinkID:        linkID,
		Status:        models.LeadPending,
		LeadName:      utils.SanitizeInput(data.Name),
		LeadEmail:     email,
		LeadPhone:     utils.SanitizeInput(data.Phone),
		ProductLink:   strings.TrimSpace(data.ProductLink),
		OrderVolume:   orDefault(utils.SanitizeInput(data.OrderVolume), "0"),
		PendingOrders: orDefault(utils.SanitizeInput(data.PendingOrders), "0"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Put(ctx, repositories.TableLeads, repositories.Key{"lead_id": lead.LeadID}, lead); err != nil {
		return nil, models.StoreUnavailable("create lead", err)
	}

	if linked != "" {
		if _, err := s.store.Update(ctx, repositories.TableLinks, repositories.Key{"link_id": linked}, repositories.Update{
			Inc: map[string]int64{"lead_count": 1},
		}); err != nil {
			s.logger.Warn("Link statistics not updated", zap.String("link_id", linked), zap.Error(err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyLeadSubmitted(lead); err != nil {
			s.logger.Warn("Lead notification failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
		}
	}
	s.events.Publish(EventLeadSubmitted, lead)

	s.logger.Info("Lead submitted", zap.String("lead_id", lead.LeadID), zap.String("affiliate_id", affiliateID))
	return lead, nil
}

// resolveLink maps a ref to its affiliate and the link id whose counters to bump.
func (s *LeadService) resolveLink(ctx context.Context, ref string) (string, string, error) {
	var link models.AffiliateLink
	found, err := s.store.Get(ctx, repositories.TableLinks, repositories.Key{"link_id": ref}, &link)
	if err != nil {
		return "", "", models.StoreUnavailable("get link", err)
	}
	if found {
		return link.AffiliateID, link.LinkID, nil
	}

	byAffiliate, err := s.latestLink(ctx, ref)
	if err != nil {
		return "", "", err
	}
	if byAffiliate == nil {
		return "", "", models.NotFound("invalid affiliate link")
	}
	return byAffiliate.AffiliateID, byAffiliate.LinkID, nil
}

// ListLeads returns leads newest first, filtered by status unless status is "all".
func (s *LeadService) ListLeads(ctx context.Context, status string, limit int64) ([]models.Lead, error) {
	if limit <= 0 {
		limit = defaultLeadListLimit
	}

	leads := []models.Lead{}
	if status == "" || status == "all" {
		if err := s.store.Scan(ctx, repositories.TableLeads, limit, &leads); err != nil {
			return nil, models.StoreUnavailable("scan leads", err)
		}
	} else {
		err := s.store.QueryByIndex(ctx, repositories.TableLeads, repositories.IndexQuery{
			Index:      repositories.IndexLeadsByStatus,
			Conditions: []repositories.Condition{repositories.Eq("status", status)},
			SortKey:    "created_at",
			Descending: true,
			Limit:      limit,
		}, &leads)
		if err != nil {
			return nil, models.StoreUnavailable("query leads", err)
		}
	}
	sortLeads(leads)
	return leads, nil
}

// LeadsForAffiliate returns one affiliate's leads, optionally filtered by status.
func (s *LeadService) LeadsForAffiliate(ctx context.Context, affiliateID, status string, limit int64) ([]models.Lead, error) {
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	if limit <= 0 {
		limit = defaultLeadListLimit
	}

	q := repositories.IndexQuery{
		Index:      repositories.IndexLeadsByAffiliate,
		Conditions: []repositories.Condition{repositories.Eq("affiliate_id", affiliateID)},
		SortKey:    "created_at",
		Descending: true,
		Limit:      limit,
	}
	if status != "" && status != "all" {
		q.Index = repositories.IndexLeadsByAffiliateStatus
		q.Conditions = append(q.Conditions, repositories.Eq("status", status))
	}

	leads := []models.Lead{}
	if err := s.store.QueryByIndex(ctx, repositories.TableLeads, q, &leads); err != nil {
		return nil, models.StoreUnavailable("query leads", err)
	}
	sortLeads(leads)
	return leads, nil
}

// GroupedLeads returns every lead grouped by affiliate.
func (s *LeadService) GroupedLeads(ctx context.Context) (*LeadsByAffiliate, error) {
	leads := []models.Lead{}
	if err := s.store.Scan(ctx, repositories.TableLeads, groupedLeadScanLimit, &leads); err != nil {
		return nil, models.StoreUnavailable("scan leads", err)
	}
	sortLeads(leads)

	grouped := make(map[string][]models.Lead)
	for _, l := range leads {
		aid := orDefault(l.AffiliateID, "unknown")
		grouped[aid] = append(grouped[aid], l)
	}
	return &LeadsByAffiliate{Leads: grouped, TotalCount: len(leads)}, nil
}

// DecideLead approves a lead with its commission or rejects it with a reason.
func (s *LeadService) DecideLead(ctx context.Context, in LeadDecision) (models.LeadStatus, error) {
	if in.LeadID == "" {
		return "", models.MissingField("lead_id")
	}

	set := map[string]interface{}{
		"updated_at":  s.now().UTC(),
		"admin_notes": in.AdminNotes,
	}
	var newStatus models.LeadStatus
	switch in.Status {
	case "approve", string(models.LeadApproved):
		newStatus = models.LeadApproved
		amount, err := in.CommissionAmount.Decimal(decimal.Zero)
		if err != nil {
			return "", models.ValidationError("commission_amount", err.Error())
		}
		if amount.IsNegative() {
			return "", models.ValidationError("commission_amount", "commission_amount must not be negative")
		}
		set["commission_amount"] = amount
	case "reject", string(models.LeadRejected):
		newStatus = models.LeadRejected
		set["rejection_reason"] = in.RejectionReason
	case "":
		return "", models.MissingField("status")
	default:
		return "", models.ValidationError("status", "status must be approve or reject")
	}
	set["status"] = newStatus

	updated, err := s.store.Update(ctx, repositories.TableLeads, repositories.Key{"lead_id": in.LeadID}, repositories.Update{Set: set})
	if err != nil {
		return "", models.StoreUnavailable("update lead", err)
	}
	if !updated {
		return "", models.NotFound("lead not found")
	}

	s.logger.Info("Lead reviewed", zap.String("lead_id", in.LeadID), zap.String("status", string(newStatus)))
	return newStatus, nil
}

func sortLeads(leads []models.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
}
