package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Defaults applied when a tenant has no stored settings row.
const (
	DefaultInvoicePrefix          = "INV"
	DefaultEstimatePrefix         = "EST"
	DefaultStartingNumber   int64 = 1000
	DefaultCurrency               = "USD"
)

// Settings holds per-tenant numbering and currency configuration. The
// billing core treats this as read-only configuration; it is mutated only
// through the settings endpoints.
type Settings struct {
	TenantID               snowflake.ID `gorm:"primaryKey"`
	InvoicePrefix          string       `gorm:"type:text;not null;default:'INV'"`
	InvoiceStartingNumber  int64        `gorm:"not null;default:1000"`
	EstimatePrefix         string       `gorm:"type:text;not null;default:'EST'"`
	EstimateStartingNumber int64        `gorm:"not null;default:1000"`
	Currency               string       `gorm:"type:text;not null;default:'USD'"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Settings) TableName() string { return "tenant_settings" }

// DefaultSettings returns the fallback configuration for a tenant.
func DefaultSettings(tenantID snowflake.ID) Settings {
	return Settings{
		TenantID:               tenantID,
		InvoicePrefix:          DefaultInvoicePrefix,
		InvoiceStartingNumber:  DefaultStartingNumber,
		EstimatePrefix:         DefaultEstimatePrefix,
		EstimateStartingNumber: DefaultStartingNumber,
		Currency:               DefaultCurrency,
	}
}
