package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type UpdateRequest struct {
	TenantID               snowflake.ID
	InvoicePrefix          *string
	InvoiceStartingNumber  *int64
	EstimatePrefix         *string
	EstimateStartingNumber *int64
	Currency               *string
}

// Service reads and updates tenant settings. Get never fails for a
// missing row; it falls back to DefaultSettings.
type Service interface {
	Get(ctx context.Context, tenantID snowflake.ID) (Settings, error)
	Update(ctx context.Context, req UpdateRequest) (Settings, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidPrefix   = errors.New("invalid_prefix")
	ErrInvalidStart    = errors.New("invalid_starting_number")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
