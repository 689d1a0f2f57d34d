package domain

import (
	"context"
	"errors"

	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/bwmarrin/snowflake"
)

// Service converts an accepted or sent estimate into a draft invoice.
// The conversion is atomic: either the invoice exists and the estimate
// is marked converted, or neither happened.
type Service interface {
	Convert(ctx context.Context, tenantID, estimateID snowflake.ID) (*documentdomain.InvoiceDetail, error)
}

var ErrAlreadyConverted = errors.New("estimate_already_converted")
