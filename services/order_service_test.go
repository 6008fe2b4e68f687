package services

import (
	"context"
	"encoding/json"
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

func newTestOrderService(store repositories.Store, cache SummaryCache, events EventPublisher) *OrderService {
	svc := NewOrderService(store, cache, events, dec("0.01"), zap.NewNop())
	svc.now = fixedClock(time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC))
	return svc
}

func decodeInput(t *testing.T, body string) OrderInput {
	t.Helper()
	var in OrderInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestCreateOrderComputesCommission(t *testing.T) {
	store := newTestStore()
	svc := newTestOrderService(store, nil, nil)

	order, err := svc.CreateOrder(context.Background(), decodeInput(t, `{
		"affiliate_id": "AFF-1",
		"customer_code": "C1",
		"order_number": 1001,
		"order_date": "2024-12-05",
		"invoice_total": "250.00",
		"commission_rate": 0.10
	}`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderID, utils.OrderPrefix))
	assert.Equal(t, "1001", order.OrderNumber)
	assert.Equal(t, "AFF-1", order.AffiliateName)
	assert.Equal(t, models.CommissionPercentage, order.CommissionType)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, int64(1), order.OrderQuantity)
	assert.True(t, dec("25").Equal(order.CommissionEarned))

	var stored models.Order
	found, err := store.Get(context.Background(), repositories.TableOrders, repositories.Key{"order_id": order.OrderID}, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, dec("250").Equal(stored.InvoiceTotal))
	assert.True(t, dec("25").Equal(stored.CommissionEarned))
}

func TestCreateOrderDefaults(t *testing.T) {
	svc := newTestOrderService(newTestStore(), nil, nil)

	order, err := svc.CreateOrder(context.Background(), decodeInput(t, `{
		"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "N1",
		"order_date": "2024-12-05", "invoice_total": 300
	}`))
	require.NoError(t, err)
	assert.True(t, dec("0.01").Equal(order.CommissionRate))
	assert.True(t, dec("3").Equal(order.CommissionEarned))
}

func TestCreateOrderRejectsMissingFieldWithoutWriting(t *testing.T) {
	store := newTestStore()
	svc := newTestOrderService(store, nil, nil)

	for _, field := range []string{"affiliate_id", "customer_code", "order_number", "order_date"} {
		body := map[string]interface{}{
			"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "N1", "order_date": "2024-12-05",
		}
		delete(body, field)
		data, _ := json.Marshal(body)

		_, err := svc.CreateOrder(context.Background(), decodeInput(t, string(data)))
		require.Error(t, err, field)

		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.KindValidation, appErr.Kind)
		assert.Equal(t, field, appErr.Field)
	}

	var orders []models.Order
	require.NoError(t, store.Scan(context.Background(), repositories.TableOrders, 0, &orders))
	assert.Empty(t, orders)
}

func TestCreateOrderRejectsUnknownModelAndPaidStatus(t *testing.T) {
	svc := newTestOrderService(newTestStore(), nil, nil)
	base := `"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "N1", "order_date": "2024-12-05"`

	_, err := svc.CreateOrder(context.Background(), decodeInput(t, `{`+base+`, "commission_type": "flat_rate"}`))
	assert.True(t, models.IsKind(err, models.KindInvalidConfiguration))

	_, err = svc.CreateOrder(context.Background(), decodeInput(t, `{`+base+`, "status": "paid"}`))
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.CreateOrder(context.Background(), decodeInput(t, `{`+base+`, "invoice_total": "abc"}`))
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.CreateOrder(context.Background(), decodeInput(t, `{"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "N1", "order_date": "12/05/2024"}`))
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestImportOrdersIsolatesBadRecords(t *testing.T) {
	store := newTestStore()
	events := &recordingPublisher{}
	svc := newTestOrderService(store, nil, events)

	records := rawRecords(t,
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "1", "order_date": "2024-12-01", "invoice_total": 100},
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_code": "C2", "order_number": "2", "order_date": "2024-12-02", "invoice_total": 200},
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_code": "C3", "order_number": "3", "order_date": "2024-12-03", "invoice_total": "not-a-number"},
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_number": "C4", "order_number": "4", "order_time": "2024-12-04T10:00:00Z", "invoice_total": 400},
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_code": "C5", "order_number": "5", "order_date": "2024-12-05", "invoice_total": 500},
	)

	result, err := svc.ImportOrders(context.Background(), records, "ops@commercive.co")
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.RecordsProcessed)
	assert.Equal(t, int64(4), result.RecordsSuccess)
	assert.Equal(t, int64(1), result.RecordsFailed)
	assert.True(t, result.Partial)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Error, "not-a-number")

	var orders []models.Order
	require.NoError(t, store.Scan(context.Background(), repositories.TableOrders, 0, &orders))
	assert.Len(t, orders, 4)
	for _, o := range orders {
		assert.Equal(t, result.ImportID, o.ImportID)
		if o.OrderNumber == "4" {
			assert.Equal(t, "C4", o.CustomerCode)
			assert.Equal(t, "2024-12-04", o.OrderDate)
		}
	}

	var batch models.ImportBatch
	found, err := store.Get(context.Background(), repositories.TableImports, repositories.Key{"import_id": result.ImportID}, &batch)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.ImportPartial, batch.Status)
	assert.Equal(t, "ops@commercive.co", batch.ImportedBy)
	assert.Equal(t, int64(4), batch.RecordsSuccess)

	assert.Equal(t, []string{EventImportCompleted}, events.Events())
}

func TestImportOrdersRecordsMalformedRecords(t *testing.T) {
	store := newTestStore()
	svc := newTestOrderService(store, nil, nil)

	records := []json.RawMessage{
		json.RawMessage(`["not", "an", "object"]`),
		json.RawMessage(`{"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "1", "order_date": "2024-12-01"}`),
		json.RawMessage(`{"affiliate_id": "AFF-1", "order_number": "2", "order_date": "2024-12-01"}`),
	}

	result, err := svc.ImportOrders(context.Background(), records, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RecordsSuccess)
	assert.Equal(t, int64(2), result.RecordsFailed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 0, result.Errors[0].Row)
	assert.Equal(t, 2, result.Errors[1].Row)
	assert.Equal(t, "missing required field: customer_code", result.Errors[1].Error)
}

func TestImportOrdersRejectsOverflowingQuantity(t *testing.T) {
	store := newTestStore()
	svc := newTestOrderService(store, nil, nil)

	result, err := svc.ImportOrders(context.Background(), []json.RawMessage{
		json.RawMessage(`{"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "1", "order_date": "2024-12-01", "commission_type": "per_order", "commission_rate": 2, "order_quantity": "18446744073709551617"}`),
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RecordsSuccess)
	assert.Equal(t, int64(1), result.RecordsFailed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "invalid integer")

	var orders []models.Order
	require.NoError(t, store.Scan(context.Background(), repositories.TableOrders, 0, &orders))
	assert.Empty(t, orders)
}

func TestImportOrdersCompletedBatch(t *testing.T) {
	store := newTestStore()
	svc := newTestOrderService(store, nil, nil)

	result, err := svc.ImportOrders(context.Background(), rawRecords(t,
		map[string]interface{}{"affiliate_id": "AFF-1", "customer_code": "C1", "order_number": "1", "order_date": "2024-12-01"},
	), "admin")
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Errors)

	var batch models.ImportBatch
	_, err = store.Get(context.Background(), repositories.TableImports, repositories.Key{"import_id": result.ImportID}, &batch)
	require.NoError(t, err)
	assert.Equal(t, models.ImportCompleted, batch.Status)
}

func TestImportOrdersRejectsEmptyInput(t *testing.T) {
	svc := newTestOrderService(newTestStore(), nil, nil)
	_, err := svc.ImportOrders(context.Background(), nil, "admin")
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestListOrdersByAffiliateAndDateRange(t *testing.T) {
	store := newTestStore()
	for i, date := range []string{"2024-11-30", "2024-12-01", "2024-12-15", "2024-12-31", "2025-01-01"} {
		putOrder(t, store, models.Order{
			OrderID:     "ORD-" + date,
			AffiliateID: "AFF-1",
			OrderDate:   date,
			OrderNumber: string(rune('a' + i)),
			Status:      models.OrderPending,
		})
	}
	putOrder(t, store, models.Order{OrderID: "ORD-other", AffiliateID: "AFF-2", OrderDate: "2024-12-10"})
	svc := newTestOrderService(store, nil, nil)

	orders, err := svc.ListOrders(context.Background(), OrderQuery{AffiliateID: "AFF-1", StartDate: "2024-12-01", EndDate: "2024-12-31"})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "2024-12-31", orders[0].OrderDate)
	assert.Equal(t, "2024-12-01", orders[2].OrderDate)

	all, err := svc.ListOrders(context.Background(), OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, "2025-01-01", all[0].OrderDate)

	limited, err := svc.ListOrders(context.Background(), OrderQuery{AffiliateID: "AFF-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	newest, err := svc.ListOrders(context.Background(), OrderQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "2025-01-01", newest[0].OrderDate)
	assert.Equal(t, "2024-12-31", newest[1].OrderDate)

	_, err = svc.ListOrders(context.Background(), OrderQuery{AffiliateID: "AFF-1", StartDate: "yesterday"})
	assert.True(t, models.IsKind(err, models.KindValidation))
}
