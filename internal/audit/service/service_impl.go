package service

import (
	"context"
	"strings"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/auditcontext"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Log(ctx context.Context, tenantID snowflake.ID, action, entityType string, entityID *string, details map[string]any) error {
	return s.LogTx(ctx, s.db, tenantID, action, entityType, entityID, details)
}

func (s *Service) LogTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, action, entityType string, entityID *string, details map[string]any) error {
	if tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		return domain.ErrInvalidEntity
	}

	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = string(domain.ActorTypeSystem)
	}
	var actorIDPtr *string
	if actorID != "" {
		actorIDPtr = &actorID
	}

	payload := datatypes.JSONMap{}
	for key, value := range details {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := &domain.ActivityLog{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ActorType:  actorType,
		ActorID:    actorIDPtr,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	return s.repo.Insert(ctx, tx, entry)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.ActivityLog, error) {
	if filter.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, filter)
}
