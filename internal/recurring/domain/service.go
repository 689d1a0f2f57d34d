package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateProfileRequest struct {
	TenantID          snowflake.ID
	ClientID          snowflake.ID
	Interval          Interval
	IntervalCount     int
	StartDate         time.Time
	EndDate           *time.Time
	SendAutomatically bool
	Items             []calculator.LineItem
	Discount          decimal.Decimal
	DiscountType      calculator.DiscountType
	TaxRate           decimal.Decimal
	Currency          string
}

type UpdateProfileRequest struct {
	TenantID          snowflake.ID
	ProfileID         snowflake.ID
	ClientID          snowflake.ID
	Interval          Interval
	IntervalCount     int
	StartDate         time.Time
	EndDate           *time.Time
	SendAutomatically bool
	Items             []calculator.LineItem
	Discount          decimal.Decimal
	DiscountType      calculator.DiscountType
	TaxRate           decimal.Decimal
	Currency          string
}

// ProfileDetail bundles a profile with its template lines.
type ProfileDetail struct {
	Profile Profile
	Items   []ProfileItem
}

// FireResult reports one profile firing: the invoice it produced and
// the state the profile advanced to.
type FireResult struct {
	Invoice *documentdomain.InvoiceDetail
	Profile Profile
}

// Service owns recurring profiles and their firing. Fire is safe to
// call concurrently for the same profile: exactly one caller generates
// the invoice for a given scheduled run.
type Service interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (*ProfileDetail, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*ProfileDetail, error)
	GetProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*ProfileDetail, error)
	ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]Profile, error)
	PauseProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*Profile, error)
	ResumeProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*Profile, error)
	DeleteProfile(ctx context.Context, tenantID, profileID snowflake.ID) error
	DueProfiles(ctx context.Context, now time.Time, limit int) ([]Profile, error)
	Fire(ctx context.Context, profileID snowflake.ID, now time.Time) (*FireResult, error)
}

var (
	ErrProfileNotFound  = errors.New("recurring_profile_not_found")
	ErrInvalidInterval  = errors.New("invalid_recurrence_interval")
	ErrInvalidSchedule  = errors.New("invalid_recurrence_schedule")
	ErrProfileNotDue    = errors.New("recurring_profile_not_due")
	ErrProfileNotActive = errors.New("recurring_profile_not_active")
)
