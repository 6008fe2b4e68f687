package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	defaultOrderListLimit = 100
)

// OrderInput is one order as submitted by an admin or an import file. Numeric
// fields keep their text until validation so a malformed value fails only its record.
type OrderInput struct {
	AffiliateID    utils.Text    `json:"affiliate_id"`
	AffiliateName  utils.Text    `json:"affiliate_name"`
	CustomerCode   utils.Text    `json:"customer_code"`
	CustomerNumber utils.Text    `json:"customer_number"`
	StoreName      utils.Text    `json:"store_name"`
	OrderNumber    utils.Text    `json:"order_number"`
	OrderDate      utils.Text    `json:"order_date"`
	OrderTime      utils.Text    `json:"order_time"`
	OrderQuantity  utils.Numeric `json:"order_quantity"`
	InvoiceTotal   utils.Numeric `json:"invoice_total"`
	CommissionType utils.Text    `json:"commission_type"`
	CommissionRate utils.Numeric `json:"commission_rate"`
	Status         utils.Text    `json:"status"`
}

// HasCommissionTerms reports whether the caller supplied a commission model or rate.
func (in *OrderInput) HasCommissionTerms() bool {
	return in.CommissionType != "" || in.CommissionRate.IsSet()
}

// ApplyConfig fills the commission terms from a registry configuration.
func (in *OrderInput) ApplyConfig(cfg *models.CommissionConfig) {
	in.CommissionType = utils.Text(cfg.CommissionType)
	in.CommissionRate = utils.NewNumeric(cfg.CommissionRate.String())
}

// OrderQuery filters ListOrders. Dates are inclusive YYYY-MM-DD bounds.
type OrderQuery struct {
	AffiliateID string
	StartDate   string
	EndDate     string
	Limit       int64
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	ImportID         string            `json:"import_id"`
	RecordsProcessed int64             `json:"records_processed"`
	RecordsSuccess   int64             `json:"records_success"`
	RecordsFailed    int64             `json:"records_failed"`
	Errors           []models.RowError `json:"errors"`
	Partial          bool              `json:"partial"`
}

type OrderService struct {
	store       repositories.Store
	cache       SummaryCache
	events      EventPublisher
	logger      *zap.Logger
	defaultRate decimal.Decimal
	now         func() time.Time
}

func NewOrderService(store repositories.Store, cache SummaryCache, events EventPublisher, defaultRate decimal.Decimal, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:       store,
		cache:       cache,
		events:      publisherOrNop(events),
		logger:      logger,
		defaultRate: defaultRate,
		now:         time.Now,
	}
}

// CreateOrder validates and stores a single order. Nothing is written when validation fails.
func (s *OrderService) CreateOrder(ctx context.Context, in OrderInput) (*models.Order, error) {
	order, err := s.buildOrder(in, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.putOrder(ctx, order); err != nil {
		return nil, models.StoreUnavailable("create order", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("affiliate_id", order.AffiliateID),
		zap.String("commission_earned", order.CommissionEarned.String()))
	s.invalidate(ctx, order.AffiliateID, order.OrderDate)
	return order, nil
}

// ImportOrders stores every valid record and collects a row error for each
// invalid one. One ImportBatch audit record is written per call.
func (s *OrderService) ImportOrders(ctx context.Context, records []json.RawMessage, importedBy string) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, models.ValidationError("orders", "no orders provided")
	}
	if importedBy == "" {
		importedBy = models.DefaultPaidBy
	}

	now := s.now().UTC()
	batch := &models.ImportBatch{
		ImportID:     utils.GenerateID(utils.ImportPrefix),
		ImportedBy:   importedBy,
		RecordsCount: int64(len(records)),
		Errors:       []models.RowError{},
		CreatedAt:    now,
	}

	touched := make(map[string][]string)
	for i, raw := range records {
		order, err := s.importRecord(ctx, raw, batch.ImportID, now)
		if err != nil {
			batch.RecordsFailed++
			batch.Errors = append(batch.Errors, models.RowError{Row: i, Error: rowMessage(err)})
			s.logger.Warn("Import record rejected",
				zap.String("import_id", batch.ImportID),
				zap.Int("row", i),
				zap.Error(err))
			continue
		}
		batch.RecordsSuccess++
		touched[order.AffiliateID] = append(touched[order.AffiliateID], order.OrderDate)
	}

	batch.Status = models.ImportCompleted
	if batch.RecordsFailed > 0 {
		batch.Status = models.ImportPartial
	}
	batch.CompletedAt = s.now().UTC()

	if err := s.store.Put(ctx, repositories.TableImports, repositories.Key{"import_id": batch.ImportID}, batch); err != nil {
		return nil, models.StoreUnavailable("record import batch", err)
	}

	for affiliateID, dates := range touched {
		s.invalidate(ctx, affiliateID, dates...)
	}

	s.logger.Info("Order import completed",
		zap.String("import_id", batch.ImportID),
		zap.Int64("success", batch.RecordsSuccess),
		zap.Int64("failed", batch.RecordsFailed))

	result := &ImportResult{
		ImportID:         batch.ImportID,
		RecordsProcessed: batch.RecordsCount,
		RecordsSuccess:   batch.RecordsSuccess,
		RecordsFailed:    batch.RecordsFailed,
		Errors:           batch.Errors,
		Partial:          batch.RecordsFailed > 0,
	}
	s.events.Publish(EventImportCompleted, result)
	return result, nil
}

func (s *OrderService) importRecord(ctx context.Context, raw json.RawMessage, importID string, now time.Time) (*models.Order, error) {
	var in OrderInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}

	order, err := s.buildOrder(in, now)
	if err != nil {
		return nil, err
	}
	order.ImportID = importID

	if err := s.putOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}
	return order, nil
}

// ListOrders returns orders newest order_date first.
func (s *OrderService) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	if q.Limit <= 0 {
		q.Limit = defaultOrderListLimit
	}

	orders := []models.Order{}
	if q.AffiliateID == "" {
		if err := s.store.Scan(ctx, repositories.TableOrders, 0, &orders); err != nil {
			return nil, models.StoreUnavailable("scan orders", err)
		}
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].OrderDate > orders[j].OrderDate
		})
		if int64(len(orders)) > q.Limit {
			orders = orders[:q.Limit]
		}
		return orders, nil
	}

	conds := []repositories.Condition{repositories.Eq("affiliate_id", q.AffiliateID)}
	if q.StartDate != "" {
		if _, err := utils.ParseDate(q.StartDate); err != nil {
			return nil, models.ValidationError("start_date", err.Error())
		}
		conds = append(conds, repositories.Gte("order_date", q.StartDate))
	}
	if q.EndDate != "" {
		if _, err := utils.ParseDate(q.EndDate); err != nil {
			return nil, models.ValidationError("end_date", err.Error())
		}
		conds = append(conds, repositories.Lte("order_date", q.EndDate))
	}

	err := s.store.QueryByIndex(ctx, repositories.TableOrders, repositories.IndexQuery{
		Index:      repositories.IndexOrdersByAffiliateDate,
		Conditions: conds,
		SortKey:    "order_date",
		Descending: true,
		Limit:      q.Limit,
	}, &orders)
	if err != nil {
		return nil, models.StoreUnavailable("query orders", err)
	}
	return orders, nil
}

func (s *OrderService) putOrder(ctx context.Context, order *models.Order) error {
	return s.store.Put(ctx, repositories.TableOrders, repositories.Key{"order_id": order.OrderID}, order)
}

func (s *OrderService) invalidate(ctx context.Context, affiliateID string, dates ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, affiliateID, periodsForDates(dates...)...); err != nil {
		s.logger.Warn("Summary cache invalidation failed",
			zap.String("affiliate_id", affiliateID),
			zap.Error(err))
	}
}

// buildOrder validates input and derives the stored order, including its commission.
func (s *OrderService) buildOrder(in OrderInput, now time.Time) (*models.Order, error) {
	customerCode := in.CustomerCode.String()
	if customerCode == "" {
		customerCode = in.CustomerNumber.String()
	}
	orderDate := in.OrderDate.String()
	if orderDate == "" && len(in.OrderTime) >= len(utils.DateLayout) {
		orderDate = in.OrderTime.String()[:len(utils.DateLayout)]
	}

	required := []struct {
		field string
		value string
	}{
		{"affiliate_id", in.AffiliateID.String()},
		{"customer_code", customerCode},
		{"order_number", in.OrderNumber.String()},
		{"order_date", orderDate},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, models.MissingField(r.field)
		}
	}
	if _, err := utils.ParseDate(orderDate); err != nil {
		return nil, models.ValidationError("order_date", err.Error())
	}

	commissionType := models.CommissionType(strings.ToLower(in.CommissionType.String()))
	if commissionType == "" {
		commissionType = models.CommissionPercentage
	}
	rate, err := in.CommissionRate.Decimal(s.defaultRate)
	if err != nil {
		return nil, models.ValidationError("commission_rate", err.Error())
	}
	quantity, err := in.OrderQuantity.Int(1)
	if err != nil {
		return nil, models.ValidationError("order_quantity", err.Error())
	}
	total, err := in.InvoiceTotal.Decimal(decimal.Zero)
	if err != nil {
		return nil, models.ValidationError("invoice_total", err.Error())
	}

	status := models.OrderStatus(strings.ToLower(in.Status.String()))
	switch status {
	case "":
		status = models.OrderPending
	case models.OrderPending, models.OrderApproved:
	default:
		return nil, models.ValidationError("status", "status must be pending or approved")
	}

	earned, err := CalculateCommission(commissionType, rate, quantity, total)
	if err != nil {
		return nil, err
	}

	affiliateName := in.AffiliateName.String()
	if affiliateName == "" {
		affiliateName = in.AffiliateID.String()
	}

	return &models.Order{
		OrderID:          utils.GenerateID(utils.OrderPrefix),
		AffiliateID:      in.AffiliateID.String(),
		AffiliateName:    affiliateName,
		CustomerCode:     customerCode,
		StoreName:        in.StoreName.String(),
		OrderNumber:      in.OrderNumber.String(),
		OrderDate:        orderDate,
		OrderQuantity:    quantity,
		InvoiceTotal:     total,
		CommissionType:   commissionType,
		CommissionRate:   rate,
		CommissionEarned: earned,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// rowMessage renders an error for a row report, keeping the field-level message of
// validation failures.
func rowMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
