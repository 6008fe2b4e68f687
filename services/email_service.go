package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/commercive_backend/models"
)

// Notifier delivers staff and affiliate notifications. Callers treat failures as non-fatal.
type Notifier interface {
	NotifyLeadSubmitted(lead *models.Lead) error
	NotifyPaymentRecorded(payment *models.Payment) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig holds SMTP settings and the staff inbox for lead alerts.
type EmailConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	NotifyEmail string
}

// EmailService sends notifications over SMTP.
type EmailService struct {
	sender      mailSender
	from        string
	notifyEmail string
	logger      *zap.Logger
}

func NewEmailService(cfg EmailConfig, logger *zap.Logger) *EmailService {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &EmailService{
		sender:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:        from,
		notifyEmail: cfg.NotifyEmail,
		logger:      logger,
	}
}

func (s *EmailService) NotifyLeadSubmitted(lead *models.Lead) error {
	if s.notifyEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("New Lead Submission from %s", lead.LeadName)
	var b strings.Builder
	b.WriteString("New Lead Submission\n===================\n\n")
	fmt.Fprintf(&b, "Contact Name: %s\n", lead.LeadName)
	fmt.Fprintf(&b, "Email: %s\n", lead.LeadEmail)
	fmt.Fprintf(&b, "Phone: %s\n", orDefault(lead.LeadPhone, "Not provided"))
	fmt.Fprintf(&b, "Product Link: %s\n", orDefault(lead.ProductLink, "Not provided"))
	fmt.Fprintf(&b, "Expected Order Volume: %s\n", lead.OrderVolume)
	fmt.Fprintf(&b, "Pending Orders: %s\n", lead.PendingOrders)
	fmt.Fprintf(&b, "Referred By Affiliate: %s\n\n", lead.AffiliateID)
	b.WriteString("--\nThis lead was submitted through the Commercive affiliate referral system.\n")

	return s.send(s.notifyEmail, subject, b.String())
}

func (s *EmailService) NotifyPaymentRecorded(payment *models.Payment) error {
	if payment.PayoutDestination == "" {
		return nil
	}

	subject := fmt.Sprintf("Commission payment %s", payment.PaymentReference)
	body := fmt.Sprintf("Hello %s,\n\nA commission payment of $%s covering %d order(s) has been sent via %s.\nPayment reference: %s\n\nThank you for partnering with Commercive.\n",
		payment.AffiliateName,
		payment.Amount.StringFixed(2),
		payment.OrdersCount,
		payment.PaymentMethod,
		payment.PaymentReference)

	return s.send(payment.PayoutDestination, subject, body)
}

func (s *EmailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	s.logger.Info("Notification email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
