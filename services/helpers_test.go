package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/utils"
)

func newTestStore() *repositories.MemoryStore {
	return repositories.NewMemoryStore(zap.NewNop(), repositories.Indexes)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustNumeric(s string) utils.Numeric {
	return utils.NewNumeric(s)
}

func rawRecords(t *testing.T, records ...map[string]interface{}) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func putOrder(t *testing.T, store repositories.Store, o models.Order) {
	t.Helper()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
		o.UpdatedAt = o.CreatedAt
	}
	require.NoError(t, store.Put(context.Background(), repositories.TableOrders, repositories.Key{"order_id": o.OrderID}, o))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type stubNotifier struct {
	mu       sync.Mutex
	leads    []*models.Lead
	payments []*models.Payment
	err      error
}

func (n *stubNotifier) NotifyLeadSubmitted(lead *models.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return n.err
}

func (n *stubNotifier) NotifyPaymentRecorded(payment *models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, payment)
	return n.err
}
