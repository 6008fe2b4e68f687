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
	defaultPaymentListLimit = 100
	recordedPaymentMethod   = "paypal"
)

// ReconcileInput selects the orders to pay. Without OrderIDs every outstanding
// order of the affiliate is paid.
type ReconcileInput struct {
	AffiliateID       string   `json:"affiliate_id"`
	AffiliateName     string   `json:"affiliate_name"`
	OrderIDs          []string `json:"order_ids"`
	PaymentReference  string   `json:"payment_reference"`
	PaymentMethod     string   `json:"payment_method"`
	PaidBy            string   `json:"paid_by"`
	PayoutDestination string   `json:"payout_destination"`
	PaypalEmail       string   `json:"paypal_email"`
}

// ReconcileResult reports the payment written and the orders that could not be paid.
type ReconcileResult struct {
	Payment         *models.Payment       `json:"payment"`
	OrdersAttempted int                   `json:"orders_attempted"`
	OrdersUpdated   int                   `json:"orders_updated"`
	FailedOrders    []models.OrderFailure `json:"failed_orders"`
}

// OutstandingResult lists the unpaid orders of an affiliate.
type OutstandingResult struct {
	AffiliateID string          `json:"affiliate_id"`
	Orders      []models.Order  `json:"orders"`
	TotalOwed   decimal.Decimal `json:"total_owed"`
}

// RecordPaymentInput is a manual payout not tied to specific orders.
type RecordPaymentInput struct {
	AffiliateID       string        `json:"affiliate_id"`
	AffiliateName     string        `json:"affiliate_name"`
	Amount            utils.Numeric `json:"amount"`
	OrdersPaid        utils.Numeric `json:"orders_paid"`
	PaymentMethod     string        `json:"payment_method"`
	PaymentReference  string        `json:"payment_reference"`
	PayoutDestination string        `json:"payout_destination"`
	PaypalEmail       string        `json:"paypal_email"`
	PaymentDate       string        `json:"payment_date"`
	PaidBy            string        `json:"paid_by"`
}

type PaymentService struct {
	store    repositories.Store
	cache    SummaryCache
	notifier Notifier
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaymentService(store repositories.Store, cache SummaryCache, notifier Notifier, events EventPublisher, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		events:   publisherOrNop(events),
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile marks orders paid and records one Payment covering the orders that
// actually transitioned. Each order moves to paid through a conditional update,
// so concurrent reconciliations never pay the same order twice.
func (s *PaymentService) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	if in.AffiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}

	orderIDs := in.OrderIDs
	if len(orderIDs) == 0 {
		outstanding, err := s.outstandingOrders(ctx, in.AffiliateID)
		if err != nil {
			return nil, err
		}
		for _, o := range outstanding {
			orderIDs = append(orderIDs, o.OrderID)
		}
	}
	if len(orderIDs) == 0 {
		return nil, models.NoOutstandingOrders(in.AffiliateID)
	}

	now := s.now().UTC()
	paymentID := utils.GenerateID(utils.PaymentPrefix)
	reference := in.PaymentReference
	if reference == "" {
		reference = paymentID
	}

	result := &ReconcileResult{
		OrdersAttempted: len(orderIDs),
		FailedOrders:    []models.OrderFailure{},
	}
	total := decimal.Zero
	paid := make([]string, 0, len(orderIDs))
	paidOrders := make([]*models.Order, 0, len(orderIDs))
	var paidDates []string
	var storeErr error
	affiliateName := in.AffiliateName

	for _, orderID := range orderIDs {
		order, err := s.payOrder(ctx, in.AffiliateID, orderID, paymentID, reference, now)
		if err != nil {
			s.logger.Warn("Order not marked paid",
				zap.String("payment_id", paymentID),
				zap.String("order_id", orderID),
				zap.Error(err))
			if storeErr == nil && models.IsKind(err, models.KindStoreUnavailable) {
				storeErr = err
			}
			result.FailedOrders = append(result.FailedOrders, models.OrderFailure{OrderID: orderID, Error: rowMessage(err)})
			continue
		}
		total = total.Add(order.CommissionEarned)
		paid = append(paid, orderID)
		paidOrders = append(paidOrders, order)
		paidDates = append(paidDates, order.OrderDate)
		if affiliateName == "" {
			affiliateName = order.AffiliateName
		}
	}

	if len(paid) == 0 {
		if storeErr != nil {
			return nil, models.StoreUnavailable("mark orders paid", storeErr)
		}
		return nil, models.NoOutstandingOrders(in.AffiliateID)
	}
	if affiliateName == "" {
		affiliateName = in.AffiliateID
	}

	payment := &models.Payment{
		PaymentID:         paymentID,
		AffiliateID:       in.AffiliateID,
		AffiliateName:     affiliateName,
		Amount:            total,
		OrdersCount:       int64(len(paid)),
		OrderIDs:          paid,
		AttemptedOrderIDs: orderIDs,
		PaymentMethod:     orDefault(in.PaymentMethod, models.DefaultPaymentMethod),
		PaymentReference:  reference,
		PayoutDestination: orDefault(in.PayoutDestination, in.PaypalEmail),
		PaidBy:            orDefault(in.PaidBy, models.DefaultPaidBy),
		PaymentDate:       now,
		Status:            models.PaymentCompleted,
		CreatedAt:         now,
	}
	if err := s.store.Put(ctx, repositories.TablePayments, repositories.Key{"payment_id": paymentID}, payment); err != nil {
		s.logger.Error("Payment record not written after orders were marked paid",
			zap.String("payment_id", paymentID),
			zap.Strings("order_ids", paid),
			zap.Error(err))
		if stranded := s.revertOrders(ctx, paymentID, paidOrders); len(stranded) > 0 {
			return nil, models.StoreUnavailable("record payment "+paymentID+" (orders left paid: "+strings.Join(stranded, ", ")+")", err)
		}
		return nil, models.StoreUnavailable("record payment", err)
	}

	result.Payment = payment
	result.OrdersUpdated = len(paid)

	s.logger.Info("Orders marked paid",
		zap.String("payment_id", paymentID),
		zap.String("affiliate_id", in.AffiliateID),
		zap.Int("orders_updated", len(paid)),
		zap.Int("orders_failed", len(result.FailedOrders)),
		zap.String("amount", total.String()))

	s.invalidate(ctx, in.AffiliateID, paidDates)
	s.notify(payment)
	s.events.Publish(EventPaymentRecorded, payment)
	return result, nil
}

func (s *PaymentService) payOrder(ctx context.Context, affiliateID, orderID, paymentID, reference string, now time.Time) (*models.Order, error) {
	var order models.Order
	found, err := s.store.Get(ctx, repositories.TableOrders, repositories.Key{"order_id": orderID}, &order)
	if err != nil {
		return nil, models.StoreUnavailable("get order", err)
	}
	if !found {
		return nil, models.NotFound("order not found")
	}
	if order.AffiliateID != affiliateID {
		return nil, models.ValidationError("order_ids", "order belongs to another affiliate")
	}
	if !order.Status.Outstanding() {
		return nil, models.ValidationError("order_ids", "order is already paid")
	}

	updated, err := s.store.Update(ctx, repositories.TableOrders, repositories.Key{"order_id": orderID}, repositories.Update{
		Set: map[string]interface{}{
			"status":            models.OrderPaid,
			"payment_id":        paymentID,
			"payment_reference": reference,
			"paid_at":           now,
			"updated_at":        now,
		},
		Conditions: []repositories.Condition{
			repositories.In("status", models.OrderPending, models.OrderApproved),
		},
	})
	if err != nil {
		return nil, models.StoreUnavailable("update order", err)
	}
	if !updated {
		return nil, models.ValidationError("order_ids", "order is already paid")
	}
	return &order, nil
}

// revertOrders returns orders paid under paymentID to their previous status.
// It reports the ids that could not be reverted.
func (s *PaymentService) revertOrders(ctx context.Context, paymentID string, orders []*models.Order) []string {
	var stranded []string
	for _, o := range orders {
		reverted, err := s.store.Update(ctx, repositories.TableOrders, repositories.Key{"order_id": o.OrderID}, repositories.Update{
			Set: map[string]interface{}{
				"status":            o.Status,
				"payment_id":        "",
				"payment_reference": "",
				"paid_at":           nil,
				"updated_at":        s.now().UTC(),
			},
			Conditions: []repositories.Condition{repositories.Eq("payment_id", paymentID)},
		})
		if err != nil || !reverted {
			s.logger.Error("Order left paid without a payment record",
				zap.String("payment_id", paymentID),
				zap.String("order_id", o.OrderID),
				zap.Error(err))
			stranded = append(stranded, o.OrderID)
		}
	}
	return stranded
}

// ListOutstanding returns the affiliate's pending and approved orders with the amount owed.
func (s *PaymentService) ListOutstanding(ctx context.Context, affiliateID string) (*OutstandingResult, error) {
	if affiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	orders, err := s.outstandingOrders(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	owed := decimal.Zero
	for _, o := range orders {
		owed = owed.Add(o.CommissionEarned)
	}
	return &OutstandingResult{AffiliateID: affiliateID, Orders: orders, TotalOwed: owed}, nil
}

func (s *PaymentService) outstandingOrders(ctx context.Context, affiliateID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.store.QueryByIndex(ctx, repositories.TableOrders, repositories.IndexQuery{
		Index: repositories.IndexOrdersByAffiliateCreated,
		Conditions: []repositories.Condition{
			repositories.Eq("affiliate_id", affiliateID),
			repositories.In("status", models.OrderPending, models.OrderApproved),
		},
		SortKey: "created_at",
	}, &orders)
	if err != nil {
		return nil, models.StoreUnavailable("query outstanding orders", err)
	}
	return orders, nil
}

// PaymentHistory returns payments newest first, for one affiliate or for everyone.
func (s *PaymentService) PaymentHistory(ctx context.Context, affiliateID string, limit int64) ([]models.Payment, error) {
	if limit <= 0 {
		limit = defaultPaymentListLimit
	}

	payments := []models.Payment{}
	if affiliateID != "" {
		err := s.store.QueryByIndex(ctx, repositories.TablePayments, repositories.IndexQuery{
			Index:      repositories.IndexPaymentsByAffiliate,
			Conditions: []repositories.Condition{repositories.Eq("affiliate_id", affiliateID)},
			SortKey:    "created_at",
			Descending: true,
			Limit:      limit,
		}, &payments)
		if err != nil {
			return nil, models.StoreUnavailable("query payments", err)
		}
		return payments, nil
	}

	if err := s.store.Scan(ctx, repositories.TablePayments, 0, &payments); err != nil {
		return nil, models.StoreUnavailable("scan payments", err)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	if int64(len(payments)) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

// RecordPayment stores a manual payout that is not linked to orders.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Payment, error) {
	if in.AffiliateID == "" {
		return nil, models.MissingField("affiliate_id")
	}
	amount, err := in.Amount.Decimal(decimal.Zero)
	if err != nil {
		return nil, models.ValidationError("amount", err.Error())
	}
	if amount.IsNegative() {
		return nil, models.ValidationError("amount", "amount must not be negative")
	}
	ordersPaid, err := in.OrdersPaid.Int(0)
	if err != nil || ordersPaid < 0 {
		return nil, models.ValidationError("orders_paid", "orders_paid must be a non-negative whole number")
	}

	now := s.now().UTC()
	paymentDate := now
	if in.PaymentDate != "" {
		if paymentDate, err = parsePaymentDate(in.PaymentDate); err != nil {
			return nil, models.ValidationError("payment_date", "payment_date must be YYYY-MM-DD or RFC 3339")
		}
	}

	paymentID := utils.GenerateID(utils.PaymentPrefix)
	payment := &models.Payment{
		PaymentID:         paymentID,
		AffiliateID:       in.AffiliateID,
		AffiliateName:     orDefault(in.AffiliateName, in.AffiliateID),
		Amount:            amount,
		OrdersCount:       ordersPaid,
		OrderIDs:          []string{},
		PaymentMethod:     orDefault(in.PaymentMethod, recordedPaymentMethod),
		PaymentReference:  orDefault(in.PaymentReference, paymentID),
		PayoutDestination: orDefault(in.PayoutDestination, in.PaypalEmail),
		PaidBy:            orDefault(in.PaidBy, models.DefaultPaidBy),
		PaymentDate:       paymentDate,
		Status:            models.PaymentCompleted,
		CreatedAt:         now,
	}
	if err := s.store.Put(ctx, repositories.TablePayments, repositories.Key{"payment_id": paymentID}, payment); err != nil {
		return nil, models.StoreUnavailable("record payment", err)
	}

	s.logger.Info("Payment recorded",
		zap.String("payment_id", paymentID),
		zap.String("affiliate_id", payment.AffiliateID),
		zap.String("amount", amount.String()))

	s.notify(payment)
	s.events.Publish(EventPaymentRecorded, payment)
	return payment, nil
}

func parsePaymentDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return utils.ParseDate(s)
}

func (s *PaymentService) invalidate(ctx context.Context, affiliateID string, dates []string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, affiliateID, periodsForDates(dates...)...); err != nil {
		s.logger.Warn("Summary cache invalidation failed",
			zap.String("affiliate_id", affiliateID),
			zap.Error(err))
	}
}

func (s *PaymentService) notify(payment *models.Payment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPaymentRecorded(payment); err != nil {
		s.logger.Warn("Payment notification failed",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err))
	}
}
