package services

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/commercive_backend/models"
)

type fakeMailSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestEmailService(sender mailSender, notifyEmail string) *EmailService {
	return &EmailService{sender: sender, from: "noreply@commercive.co", notifyEmail: notifyEmail, logger: zap.NewNop()}
}

func messageBody(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestNotifyLeadSubmitted(t *testing.T) {
	sender := &fakeMailSender{}
	svc := newTestEmailService(sender, "sales@commercive.co")

	err := svc.NotifyLeadSubmitted(&models.Lead{
		LeadName:    "Jane Doe",
		LeadEmail:   "jane@store.test",
		OrderVolume: "500",
		AffiliateID: "AFF-1",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"sales@commercive.co"}, m.GetHeader("To"))
	assert.Equal(t, []string{"noreply@commercive.co"}, m.GetHeader("From"))
	assert.Equal(t, []string{"New Lead Submission from Jane Doe"}, m.GetHeader("Subject"))

	body := messageBody(t, m)
	assert.Contains(t, body, "Contact Name: Jane Doe")
	assert.Contains(t, body, "Phone: Not provided")
	assert.Contains(t, body, "Referred By Affiliate: AFF-1")
}

func TestNotifyLeadSubmittedWithoutInbox(t *testing.T) {
	sender := &fakeMailSender{}
	require.NoError(t, newTestEmailService(sender, "").NotifyLeadSubmitted(&models.Lead{LeadName: "Jane"}))
	assert.Empty(t, sender.sent)
}

func TestNotifyPaymentRecorded(t *testing.T) {
	sender := &fakeMailSender{}
	svc := newTestEmailService(sender, "")

	payment := &models.Payment{
		AffiliateName:     "Acme Partners",
		Amount:            dec("25.5"),
		OrdersCount:       2,
		PaymentMethod:     "paypal",
		PaymentReference:  "PP-123",
		PayoutDestination: "payouts@acme.test",
	}
	require.NoError(t, svc.NotifyPaymentRecorded(payment))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"payouts@acme.test"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Commission payment PP-123"}, m.GetHeader("Subject"))
	body := messageBody(t, m)
	assert.Contains(t, body, "Hello Acme Partners,")
	assert.Contains(t, body, "Payment reference: PP-123")

	payment.PayoutDestination = ""
	require.NoError(t, svc.NotifyPaymentRecorded(payment))
	assert.Len(t, sender.sent, 1)
}

func TestNotifySendFailure(t *testing.T) {
	svc := newTestEmailService(&fakeMailSender{err: errors.New("connection refused")}, "sales@commercive.co")
	err := svc.NotifyLeadSubmitted(&models.Lead{LeadName: "Jane"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sales@commercive.co")
}
