package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered a billing action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Actions written by the billing core.
const (
	ActionInvoiceCreated    = "invoice.created"
	ActionInvoiceUpdated    = "invoice.updated"
	ActionInvoiceSent       = "invoice.sent"
	ActionInvoiceCancelled  = "invoice.cancelled"
	ActionInvoiceDeleted    = "invoice.deleted"
	ActionEstimateCreated   = "estimate.created"
	ActionEstimateUpdated   = "estimate.updated"
	ActionEstimateSent      = "estimate.sent"
	ActionEstimateDeleted   = "estimate.deleted"
	ActionEstimateConverted = "estimate.converted"
	ActionPaymentRecorded   = "payment.recorded"
	ActionPaymentDeleted    = "payment.deleted"
	ActionRecurringFired    = "recurring.fired"
)

// ActivityLog captures an immutable record of a billing action.
type ActivityLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	TenantID   snowflake.ID      `gorm:"not null;index:ix_activity_logs_tenant_action,priority:1"`
	ActorType  string            `gorm:"type:text;not null"`
	ActorID    *string           `gorm:"type:text"`
	Action     string            `gorm:"type:text;not null;index:ix_activity_logs_tenant_action,priority:2"`
	EntityType string            `gorm:"type:text;not null"`
	EntityID   *string           `gorm:"type:text"`
	Details    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ActivityLog) TableName() string { return "activity_logs" }
