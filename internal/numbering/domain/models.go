package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DocumentKind identifies which numbering sequence a document draws from.
type DocumentKind string

const (
	KindInvoice  DocumentKind = "invoice"
	KindEstimate DocumentKind = "estimate"
)

// Counter is the per-(tenant, kind, prefix) allocation row. NextValue is
// the number the next allocation will hand out; it only moves forward,
// through a fenced conditional update.
type Counter struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:ux_numbering_counters_scope,priority:1"`
	Kind      DocumentKind `gorm:"type:text;not null;uniqueIndex:ux_numbering_counters_scope,priority:2"`
	Prefix    string       `gorm:"type:text;not null;uniqueIndex:ux_numbering_counters_scope,priority:3"`
	NextValue int64        `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Counter) TableName() string { return "numbering_counters" }

// Format renders a document number. The numeric part is zero padded to
// width 4 and widens past 9999 without truncation (INV1000, INV10000).
func Format(prefix string, value int64) string {
	return fmt.Sprintf("%s%04d", prefix, value)
}
