package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Transaction is one recorded payment against an invoice. Rows are
// immutable once written; corrections go through Delete plus a fresh
// Record.
type Transaction struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	TenantID        snowflake.ID    `gorm:"not null;index"`
	InvoiceID       snowflake.ID    `gorm:"not null;index"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PaymentDate     time.Time       `gorm:"not null"`
	PaymentMethod   string          `gorm:"type:text;not null;default:''"`
	ReferenceNumber string          `gorm:"type:text;not null;default:''"`
	Notes           string          `gorm:"type:text;not null;default:''"`
	CreatedBy       *snowflake.ID
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "payment_transactions" }
