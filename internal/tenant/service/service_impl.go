package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/cache"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsTTL = 30 * time.Second

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cache *cache.TTLCache[snowflake.ID, domain.Settings]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		cache: cache.NewTTLCache[snowflake.ID, domain.Settings](),
	}
}

func (s *Service) Get(ctx context.Context, tenantID snowflake.ID) (domain.Settings, error) {
	if tenantID == 0 {
		return domain.Settings{}, domain.ErrInvalidTenant
	}
	if cached, ok := s.cache.Get(tenantID); ok {
		return cached, nil
	}

	var settings domain.Settings
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultSettings(tenantID), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}

	s.cache.Set(tenantID, settings, settingsTTL)
	return settings, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Settings, error) {
	if req.TenantID == 0 {
		return domain.Settings{}, domain.ErrInvalidTenant
	}

	settings, err := s.Get(ctx, req.TenantID)
	if err != nil {
		return domain.Settings{}, err
	}

	if req.InvoicePrefix != nil {
		prefix := strings.TrimSpace(*req.InvoicePrefix)
		if prefix == "" {
			return domain.Settings{}, domain.ErrInvalidPrefix
		}
		settings.InvoicePrefix = prefix
	}
	if req.EstimatePrefix != nil {
		prefix := strings.TrimSpace(*req.EstimatePrefix)
		if prefix == "" {
			return domain.Settings{}, domain.ErrInvalidPrefix
		}
		settings.EstimatePrefix = prefix
	}
	if req.InvoiceStartingNumber != nil {
		if *req.InvoiceStartingNumber < 1 {
			return domain.Settings{}, domain.ErrInvalidStart
		}
		settings.InvoiceStartingNumber = *req.InvoiceStartingNumber
	}
	if req.EstimateStartingNumber != nil {
		if *req.EstimateStartingNumber < 1 {
			return domain.Settings{}, domain.ErrInvalidStart
		}
		settings.EstimateStartingNumber = *req.EstimateStartingNumber
	}
	if req.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if len(currency) != 3 {
			return domain.Settings{}, domain.ErrInvalidCurrency
		}
		settings.Currency = currency
	}

	settings.UpdatedAt = time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = settings.UpdatedAt
	}
	// First write for a tenant inserts the row; later writes replace it.
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&settings).Error; err != nil {
		return domain.Settings{}, err
	}

	s.cache.Delete(req.TenantID)
	return settings, nil
}
