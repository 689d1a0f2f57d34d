package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RecordRequest struct {
	TenantID        snowflake.ID
	InvoiceID       snowflake.ID
	Amount          decimal.Decimal
	PaymentDate     time.Time
	PaymentMethod   string
	ReferenceNumber string
	Notes           string
}

// RecordResult reports the invoice balance after a payment lands.
type RecordResult struct {
	Transaction Transaction
	PaidAmount  decimal.Decimal
	Balance     decimal.Decimal
	Status      string
}

// Service maintains the payment ledger and the paid_amount / status
// projection on the invoice. All mutations are transactional with the
// invoice row.
type Service interface {
	Record(ctx context.Context, req RecordRequest) (*RecordResult, error)
	Delete(ctx context.Context, tenantID, transactionID snowflake.ID) (*RecordResult, error)
	List(ctx context.Context, tenantID, invoiceID snowflake.ID) ([]Transaction, error)
}

var (
	ErrInvalidAmount       = errors.New("invalid_payment_amount")
	ErrTransactionNotFound = errors.New("payment_transaction_not_found")
	ErrOverpayment         = errors.New("overpayment_rejected")
	ErrForbidden           = errors.New("forbidden")
	ErrConcurrentUpdate    = errors.New("concurrent_invoice_update")
)

// OverpaymentError rejects a payment that would push the invoice past
// its total and carries the largest amount still accepted.
type OverpaymentError struct {
	Total       decimal.Decimal
	AlreadyPaid decimal.Decimal
	MaxPayment  decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return "payment exceeds invoice balance, max payment " + e.MaxPayment.StringFixed(2)
}

// Is makes errors.Is(err, ErrOverpayment) match.
func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }
