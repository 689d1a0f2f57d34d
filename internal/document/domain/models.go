package domain

import (
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus is the invoice state machine:
// draft -> sent -> {paid, partially_paid, cancelled}; overdue is derived
// from the due date at read time, never stored by a transition here.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// EstimateStatus is the estimate state machine:
// draft -> sent -> {accepted, declined}; expired is derived from the
// expiry date; converted is terminal and set only by the conversion
// service.
type EstimateStatus string

const (
	EstimateStatusDraft     EstimateStatus = "draft"
	EstimateStatusSent      EstimateStatus = "sent"
	EstimateStatusAccepted  EstimateStatus = "accepted"
	EstimateStatusDeclined  EstimateStatus = "declined"
	EstimateStatusExpired   EstimateStatus = "expired"
	EstimateStatusConverted EstimateStatus = "converted"
)

// Invoice is a billable ledger document. Totals are always derived by the
// calculator; paid_amount and payment-driven statuses are owned by the
// payment service.
type Invoice struct {
	ID               snowflake.ID            `gorm:"primaryKey"`
	TenantID         snowflake.ID            `gorm:"not null;uniqueIndex:ux_invoices_tenant_number,priority:1"`
	ClientID         snowflake.ID            `gorm:"not null;index"`
	DocumentNumber   string                  `gorm:"type:text;not null;uniqueIndex:ux_invoices_tenant_number,priority:2"`
	Status           InvoiceStatus           `gorm:"type:text;not null;default:'draft'"`
	SentAt           *time.Time
	IssueDate        time.Time               `gorm:"not null"`
	DueDate          time.Time               `gorm:"not null"`
	Subtotal         decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Discount         decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	DiscountType     calculator.DiscountType `gorm:"type:text;not null;default:'fixed'"`
	TaxRate          decimal.Decimal         `gorm:"type:numeric(7,4);not null"`
	TaxAmount        decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Total            decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	PaidAmount       decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Currency         string                  `gorm:"type:text;not null;default:'USD'"`
	Notes            string                  `gorm:"type:text"`
	Terms            string                  `gorm:"type:text"`
	SourceEstimateID *snowflake.ID           `gorm:"column:source_estimate_id"`
	Metadata         datatypes.JSONMap       `gorm:"type:jsonb"`
	CreatedAt        time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// EffectiveStatus derives the observed status at read time: a sent or
// partially paid invoice past its due date with an open balance reads as
// overdue.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if (i.Status == InvoiceStatusSent || i.Status == InvoiceStatusPartiallyPaid) &&
		now.After(i.DueDate) &&
		i.PaidAmount.LessThan(i.Total) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// EditLocked reports whether financial edits must be rejected.
func (i *Invoice) EditLocked() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled
}

// InvoiceItem is one line of an invoice, owned exclusively by it.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// Estimate mirrors Invoice with an expiry date instead of a due date and
// no payment fields.
type Estimate struct {
	ID                   snowflake.ID            `gorm:"primaryKey"`
	TenantID             snowflake.ID            `gorm:"not null;uniqueIndex:ux_estimates_tenant_number,priority:1"`
	ClientID             snowflake.ID            `gorm:"not null;index"`
	DocumentNumber       string                  `gorm:"type:text;not null;uniqueIndex:ux_estimates_tenant_number,priority:2"`
	Status               EstimateStatus          `gorm:"type:text;not null;default:'draft'"`
	IssueDate            time.Time               `gorm:"not null"`
	ExpiryDate           time.Time               `gorm:"not null"`
	Subtotal             decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Discount             decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	DiscountType         calculator.DiscountType `gorm:"type:text;not null;default:'fixed'"`
	TaxRate              decimal.Decimal         `gorm:"type:numeric(7,4);not null"`
	TaxAmount            decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Total                decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Currency             string                  `gorm:"type:text;not null;default:'USD'"`
	Notes                string                  `gorm:"type:text"`
	Terms                string                  `gorm:"type:text"`
	ConvertedToInvoiceID *snowflake.ID           `gorm:"uniqueIndex:ux_estimates_converted_invoice"`
	Metadata             datatypes.JSONMap       `gorm:"type:jsonb"`
	CreatedAt            time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Estimate) TableName() string { return "estimates" }

// EffectiveStatus derives the observed status: a sent estimate past its
// expiry date reads as expired.
func (e *Estimate) EffectiveStatus(now time.Time) EstimateStatus {
	if e.Status == EstimateStatusSent && now.After(e.ExpiryDate) {
		return EstimateStatusExpired
	}
	return e.Status
}

// EditLocked reports whether edits must be rejected. A converted
// estimate is immutable.
func (e *Estimate) EditLocked() bool {
	return e.Status == EstimateStatusConverted
}

// EstimateItem is one line of an estimate, owned exclusively by it.
type EstimateItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	EstimateID  snowflake.ID    `gorm:"not null;index"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EstimateItem) TableName() string { return "estimate_items" }
