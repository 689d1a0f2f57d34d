// Package calculator derives document totals from line items. It is the
// single source of financial truth: services never accept a submitted
// total, they recompute it here on every financial mutation.
package calculator

import (
	"errors"
	"strings"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/money"
	"github.com/shopspring/decimal"
)

// DiscountType selects how the discount field is interpreted.
type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// LineItem is one billable row of a document.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Amount returns quantity times unit price, rounded.
func (li LineItem) Amount() decimal.Decimal {
	return money.Round(li.Quantity.Mul(li.UnitPrice))
}

// Breakdown is the computed financial summary of a document.
type Breakdown struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

var (
	ErrNoItems                 = errors.New("no_line_items")
	ErrInvalidDescription      = errors.New("invalid_description")
	ErrInvalidQuantity         = errors.New("invalid_quantity")
	ErrInvalidUnitPrice        = errors.New("invalid_unit_price")
	ErrInvalidDiscount         = errors.New("invalid_discount")
	ErrInvalidTaxRate          = errors.New("invalid_tax_rate")
	ErrDiscountExceedsSubtotal = errors.New("discount_exceeds_subtotal")
)

var hundred = decimal.NewFromInt(100)

// Compute derives {subtotal, discount, tax, total} from line items. Pure
// and deterministic; a negative total is rejected, never produced.
func Compute(items []LineItem, discount decimal.Decimal, discountType DiscountType, taxRate decimal.Decimal) (Breakdown, error) {
	if len(items) == 0 {
		return Breakdown{}, ErrNoItems
	}
	if money.IsNegative(discount) {
		return Breakdown{}, ErrInvalidDiscount
	}
	if money.IsNegative(taxRate) {
		return Breakdown{}, ErrInvalidTaxRate
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return Breakdown{}, ErrInvalidDescription
		}
		if !item.Quantity.GreaterThan(decimal.Zero) {
			return Breakdown{}, ErrInvalidQuantity
		}
		if money.IsNegative(item.UnitPrice) {
			return Breakdown{}, ErrInvalidUnitPrice
		}
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
	}
	subtotal = money.Round(subtotal)

	var discountAmount decimal.Decimal
	switch discountType {
	case DiscountFixed, "":
		discountAmount = money.Round(discount)
	case DiscountPercent:
		if discount.GreaterThan(hundred) {
			return Breakdown{}, ErrInvalidDiscount
		}
		discountAmount = money.Round(subtotal.Mul(discount).Div(hundred))
	default:
		return Breakdown{}, ErrInvalidDiscount
	}
	if discountAmount.GreaterThan(subtotal) {
		return Breakdown{}, ErrDiscountExceedsSubtotal
	}

	taxable := subtotal.Sub(discountAmount)
	taxAmount := money.Round(taxable.Mul(taxRate).Div(hundred))
	total := money.Round(taxable.Add(taxAmount))

	return Breakdown{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		Total:          total,
	}, nil
}
