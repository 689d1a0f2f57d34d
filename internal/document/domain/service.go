package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	TenantID         snowflake.ID
	ClientID         snowflake.ID
	IssueDate        time.Time
	DueDate          time.Time
	Items            []calculator.LineItem
	Discount         decimal.Decimal
	DiscountType     calculator.DiscountType
	TaxRate          decimal.Decimal
	Currency         string
	Notes            string
	Terms            string
	SourceEstimateID *snowflake.ID
	Metadata         map[string]any
}

type UpdateInvoiceRequest struct {
	TenantID     snowflake.ID
	InvoiceID    snowflake.ID
	ClientID     snowflake.ID
	IssueDate    time.Time
	DueDate      time.Time
	Items        []calculator.LineItem
	Discount     decimal.Decimal
	DiscountType calculator.DiscountType
	TaxRate      decimal.Decimal
	Currency     string
	Notes        string
	Terms        string
}

type CreateEstimateRequest struct {
	TenantID     snowflake.ID
	ClientID     snowflake.ID
	IssueDate    time.Time
	ExpiryDate   time.Time
	Items        []calculator.LineItem
	Discount     decimal.Decimal
	DiscountType calculator.DiscountType
	TaxRate      decimal.Decimal
	Currency     string
	Notes        string
	Terms        string
}

type UpdateEstimateRequest struct {
	TenantID     snowflake.ID
	EstimateID   snowflake.ID
	ClientID     snowflake.ID
	IssueDate    time.Time
	ExpiryDate   time.Time
	Items        []calculator.LineItem
	Discount     decimal.Decimal
	DiscountType calculator.DiscountType
	TaxRate      decimal.Decimal
	Currency     string
	Notes        string
	Terms        string
}

type ListRequest struct {
	TenantID snowflake.ID
	Status   string
	ClientID snowflake.ID
	Limit    int
}

// InvoiceDetail bundles an invoice with its line items.
type InvoiceDetail struct {
	Invoice Invoice
	Items   []InvoiceItem
}

// EstimateDetail bundles an estimate with its line items.
type EstimateDetail struct {
	Estimate Estimate
	Items    []EstimateItem
}

// Service owns the ledger document lifecycle. CreateInvoiceTx joins an
// existing transaction so conversion and recurring firing share the
// create path atomically.
type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceDetail, error)
	CreateInvoiceTx(ctx context.Context, tx *gorm.DB, req CreateInvoiceRequest) (*InvoiceDetail, error)
	UpdateInvoice(ctx context.Context, req UpdateInvoiceRequest) (*InvoiceDetail, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*InvoiceDetail, error)
	ListInvoices(ctx context.Context, req ListRequest) ([]Invoice, error)
	SendInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*Invoice, error)
	CancelInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*Invoice, error)
	DeleteInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) error

	CreateEstimate(ctx context.Context, req CreateEstimateRequest) (*EstimateDetail, error)
	UpdateEstimate(ctx context.Context, req UpdateEstimateRequest) (*EstimateDetail, error)
	GetEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*EstimateDetail, error)
	ListEstimates(ctx context.Context, req ListRequest) ([]Estimate, error)
	SendEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*Estimate, error)
	AcceptEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*Estimate, error)
	DeclineEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*Estimate, error)
	DeleteEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) error

	MarkLapsed(ctx context.Context, asOf time.Time) (int64, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidDates        = errors.New("invalid_dates")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrEstimateNotFound    = errors.New("estimate_not_found")
	ErrDocumentLocked      = errors.New("document_locked")
	ErrDocumentHasPayments = errors.New("document_has_payments")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
)
