package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HSouheill/commercive_backend/models"
)

// CalculateCommission prices one order under the given commission model.
// The result is exact; rounding happens only when amounts are presented.
func CalculateCommission(model models.CommissionType, rate decimal.Decimal, quantity int64, invoiceTotal decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateCommissionType(model); err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() {
		return decimal.Zero, models.ValidationError("commission_rate", "commission_rate must not be negative")
	}
	if quantity <= 0 {
		return decimal.Zero, models.ValidationError("order_quantity", "order_quantity must be greater than zero")
	}
	if invoiceTotal.IsNegative() {
		return decimal.Zero, models.ValidationError("invoice_total", "invoice_total must not be negative")
	}

	if model == models.CommissionPerOrder {
		return rate.Mul(decimal.NewFromInt(quantity)), nil
	}
	return rate.Mul(invoiceTotal), nil
}

// ValidateCommissionType rejects models the calculator does not know.
func ValidateCommissionType(model models.CommissionType) error {
	switch model {
	case models.CommissionPerOrder, models.CommissionPercentage:
		return nil
	}
	return models.InvalidConfiguration(fmt.Sprintf("unknown commission_type %q", string(model)))
}
