package domain

import (
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Interval is the recurrence unit of a profile.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Valid reports whether the interval is one the engine understands.
func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// ProfileStatus is the profile lifecycle: active profiles fire, paused
// profiles are skipped, completed profiles have run past their end date.
type ProfileStatus string

const (
	StatusActive    ProfileStatus = "active"
	StatusPaused    ProfileStatus = "paused"
	StatusCompleted ProfileStatus = "completed"
)

// Profile is a template that stamps out invoices on a schedule.
type Profile struct {
	ID                snowflake.ID            `gorm:"primaryKey"`
	TenantID          snowflake.ID            `gorm:"not null;index"`
	ClientID          snowflake.ID            `gorm:"not null"`
	Interval          Interval                `gorm:"type:text;not null;default:'month'"`
	IntervalCount     int                     `gorm:"not null;default:1"`
	StartDate         time.Time               `gorm:"not null"`
	EndDate           *time.Time
	NextRun           time.Time               `gorm:"not null;index:ix_recurring_profiles_due,priority:2"`
	LastRun           *time.Time
	Status            ProfileStatus           `gorm:"type:text;not null;default:'active';index:ix_recurring_profiles_due,priority:1"`
	SendAutomatically bool                    `gorm:"not null;default:false"`
	Discount          decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	DiscountType      calculator.DiscountType `gorm:"type:text;not null;default:'fixed'"`
	TaxRate           decimal.Decimal         `gorm:"type:numeric(7,4);not null"`
	Total             decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	Currency          string                  `gorm:"type:text;not null;default:'USD'"`
	CreatedAt         time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "recurring_profiles" }

// ProfileItem is one template line, copied onto every generated invoice.
type ProfileItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	ProfileID   snowflake.ID    `gorm:"not null;index"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProfileItem) TableName() string { return "recurring_profile_items" }

// NextRunAfter advances from the previous scheduled time, not from the
// time the worker happened to fire, so a late run does not shift the
// schedule.
func NextRunAfter(previous time.Time, interval Interval, count int) time.Time {
	if count < 1 {
		count = 1
	}
	switch interval {
	case IntervalDay:
		return previous.AddDate(0, 0, count)
	case IntervalWeek:
		return previous.AddDate(0, 0, 7*count)
	case IntervalYear:
		return previous.AddDate(count, 0, 0)
	default:
		return previous.AddDate(0, count, 0)
	}
}
