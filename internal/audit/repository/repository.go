package repository

import (
	"context"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"gorm.io/gorm"
)

type gormRepository struct{}

// Provide constructs the gorm-backed activity log repository.
func Provide() domain.Repository {
	return gormRepository{}
}

func (gormRepository) Insert(ctx context.Context, db *gorm.DB, entry *domain.ActivityLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (gormRepository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.ActivityLog, error) {
	query := db.WithContext(ctx).
		Model(&domain.ActivityLog{}).
		Where("tenant_id = ?", filter.TenantID)
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.StartAt != nil {
		query = query.Where("created_at >= ?", *filter.StartAt)
	}
	if filter.EndAt != nil {
		query = query.Where("created_at < ?", *filter.EndAt)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []*domain.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
