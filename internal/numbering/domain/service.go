package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MaxAllocateAttempts bounds the create-level retry loop around
// ErrAllocationConflict.
const MaxAllocateAttempts = 3

// Allocator hands out the next unique document number for a tenant and
// kind. Allocate must run inside the same transaction as the document
// insert it numbers, so a failed insert releases the value with the
// rollback.
type Allocator interface {
	Allocate(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind DocumentKind) (string, error)
}

var (
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidKind        = errors.New("invalid_document_kind")
	ErrAllocationConflict = errors.New("allocation_conflict")
)
