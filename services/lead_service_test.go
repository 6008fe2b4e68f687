package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

const testFormURL = "https://dashboard.commercive.co/affiliate-form"

func newTestLeadService(store repositories.Store, notifier Notifier, events EventPublisher) *LeadService {
	svc := NewLeadService(store, notifier, events, testFormURL, zap.NewNop())
	tick := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	return svc
}

func TestCreateLinkIsIdempotent(t *testing.T) {
	svc := newTestLeadService(newTestStore(), nil, nil)

	first, err := svc.CreateLink(context.Background(), "AFF-1", "")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, strings.HasPrefix(first.Link.LinkID, utils.LinkPrefix))
	assert.Equal(t, "AFF-1", first.Link.UserID)
	assert.Equal(t, testFormURL+"?ref="+first.Link.LinkID, first.FormURL)

	second, err := svc.CreateLink(context.Background(), "AFF-1", "U-9")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Link.LinkID, second.Link.LinkID)

	got, err := svc.GetLink(context.Background(), "AFF-1")
	require.NoError(t, err)
	assert.Equal(t, first.Link.LinkID, got.Link.LinkID)

	_, err = svc.GetLink(context.Background(), "AFF-404")
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestLinkQRCode(t *testing.T) {
	svc := newTestLeadService(newTestStore(), nil, nil)
	_, err := svc.CreateLink(context.Background(), "AFF-1", "")
	require.NoError(t, err)

	url, code, err := svc.LinkQRCode(context.Background(), "AFF-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, testFormURL))
	assert.True(t, strings.HasPrefix(code, "data:image/png;base64,"))
}

func TestSubmitLeadThroughLink(t *testing.T) {
	store := newTestStore()
	notifier := &stubNotifier{}
	events := &recordingPublisher{}
	svc := newTestLeadService(store, notifier, events)

	link, err := svc.CreateLink(context.Background(), "AFF-1", "")
	require.NoError(t, err)

	lead, err := svc.SubmitLead(context.Background(), SubmitLeadInput{
		Ref:      link.Link.LinkID,
		LeadData: &models.LeadData{Name: "Jordan Lee", Email: " Jordan@Shop.Example ", ProductLink: "https://shop.example"},
	})
	require.NoError(t, err)
	assert.Equal(t, "AFF-1", lead.AffiliateID)
	assert.Equal(t, "jordan@shop.example", lead.LeadEmail)
	assert.Equal(t, models.LeadPending, lead.Status)
	assert.Equal(t, "0", lead.OrderVolume)

	var stored models.AffiliateLink
	_, err = store.Get(context.Background(), repositories.TableLinks, repositories.Key{"link_id": link.Link.LinkID}, &stored)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.LeadCount)

	require.Len(t, notifier.leads, 1)
	assert.Equal(t, []string{EventLeadSubmitted}, events.Events())
}

func TestSubmitLeadAcceptsAffiliateIDAsRef(t *testing.T) {
	store := newTestStore()
	svc := newTestLeadService(store, nil, nil)
	link, err := svc.CreateLink(context.Background(), "AFF-7", "")
	require.NoError(t, err)

	lead, err := svc.SubmitLead(context.Background(), SubmitLeadInput{
		LinkID: "AFF-7",
		Lead:   &models.LeadData{Name: "Sam", Email: "sam@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "AFF-7", lead.AffiliateID)

	var stored models.AffiliateLink
	_, err = store.Get(context.Background(), repositories.TableLinks, repositories.Key{"link_id": link.Link.LinkID}, &stored)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.LeadCount)
}

func TestSubmitLeadValidation(t *testing.T) {
	svc := newTestLeadService(newTestStore(), nil, nil)

	_, err := svc.SubmitLead(context.Background(), SubmitLeadInput{LeadData: &models.LeadData{Name: "A", Email: "a@b.co"}})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.SubmitLead(context.Background(), SubmitLeadInput{LinkID: "AFF-X", LeadData: &models.LeadData{Email: "a@b.co"}})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.SubmitLead(context.Background(), SubmitLeadInput{LinkID: "AFF-X", LeadData: &models.LeadData{Name: "A", Email: "nope"}})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.SubmitLead(context.Background(), SubmitLeadInput{LinkID: "AFF-X", LeadData: &models.LeadData{Name: "A", Email: "a@b.co"}})
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestLeadReviewAndListing(t *testing.T) {
	store := newTestStore()
	svc := newTestLeadService(store, nil, nil)
	for _, aff := range []string{"AFF-1", "AFF-2"} {
		_, err := svc.CreateLink(context.Background(), aff, "")
		require.NoError(t, err)
	}

	var ids []string
	for _, aff := range []string{"AFF-1", "AFF-1", "AFF-2"} {
		lead, err := svc.SubmitLead(context.Background(), SubmitLeadInput{LinkID: aff, LeadData: &models.LeadData{Name: "N", Email: "n@example.com"}})
		require.NoError(t, err)
		ids = append(ids, lead.LeadID)
	}

	status, err := svc.DecideLead(context.Background(), LeadDecision{LeadID: ids[0], Status: "approve", CommissionAmount: mustNumeric("50")})
	require.NoError(t, err)
	assert.Equal(t, models.LeadApproved, status)

	status, err = svc.DecideLead(context.Background(), LeadDecision{LeadID: ids[2], Status: "reject", RejectionReason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, models.LeadRejected, status)

	_, err = svc.DecideLead(context.Background(), LeadDecision{LeadID: "LEAD-404", Status: "approve"})
	assert.True(t, models.IsKind(err, models.KindNotFound))
	_, err = svc.DecideLead(context.Background(), LeadDecision{LeadID: ids[1], Status: "maybe"})
	assert.True(t, models.IsKind(err, models.KindValidation))

	var approved models.Lead
	_, err = store.Get(context.Background(), repositories.TableLeads, repositories.Key{"lead_id": ids[0]}, &approved)
	require.NoError(t, err)
	require.NotNil(t, approved.CommissionAmount)
	assert.True(t, dec("50").Equal(*approved.CommissionAmount))

	pending, err := svc.ListLeads(context.Background(), "pending", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := svc.ListLeads(context.Background(), "all", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[2].CreatedAt))

	aff1, err := svc.LeadsForAffiliate(context.Background(), "AFF-1", "approved", 0)
	require.NoError(t, err)
	assert.Len(t, aff1, 1)

	grouped, err := svc.GroupedLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, grouped.TotalCount)
	assert.Len(t, grouped.Leads["AFF-1"], 2)
	assert.Len(t, grouped.Leads["AFF-2"], 1)
}
