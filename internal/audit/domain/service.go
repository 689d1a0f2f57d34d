package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service writes and reads the append-only activity log. LogTx joins an
// existing transaction so audit entries commit or roll back with the
// mutation they describe.
type Service interface {
	Log(ctx context.Context, tenantID snowflake.ID, action, entityType string, entityID *string, details map[string]any) error
	LogTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, action, entityType string, entityID *string, details map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*ActivityLog, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidEntity = errors.New("invalid_entity")
)
