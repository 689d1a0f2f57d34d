package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Tenants tenantdomain.Service
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	tenants tenantdomain.Service
}

func NewService(p Params) domain.Allocator {
	return &Service{
		log:     p.Log.Named("numbering.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		tenants: p.Tenants,
	}
}

// Allocate reserves the next document number inside the caller's
// transaction. The counter row advances through a conditional update
// fenced on the observed value; losing that race yields
// ErrAllocationConflict and the caller retries the whole create.
func (s *Service) Allocate(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind domain.DocumentKind) (string, error) {
	if tenantID == 0 {
		return "", domain.ErrInvalidTenant
	}
	if kind != domain.KindInvoice && kind != domain.KindEstimate {
		return "", domain.ErrInvalidKind
	}

	settings, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		// Settings store unavailable: a time-based number keeps the
		// create alive, with the unique constraint as the final check.
		prefix := defaultPrefix(kind)
		s.log.Warn("settings unavailable, using fallback number",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return prefix + strconv.FormatInt(s.clock.Now().UnixMilli(), 10), nil
	}

	prefix, start := scopeFor(settings, kind)

	next, err := s.currentValue(ctx, tx, tenantID, kind, prefix)
	if err != nil {
		return "", err
	}
	if next == 0 {
		if next, err = s.seedCounter(ctx, tx, tenantID, kind, prefix, start); err != nil {
			return "", err
		}
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE numbering_counters
		 SET next_value = ?, updated_at = ?
		 WHERE tenant_id = ? AND kind = ? AND prefix = ? AND next_value = ?`,
		next+1,
		s.clock.Now().UTC(),
		tenantID,
		kind,
		prefix,
		next,
	)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", domain.ErrAllocationConflict
	}

	return domain.Format(prefix, next), nil
}

func (s *Service) currentValue(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind domain.DocumentKind, prefix string) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT next_value
		 FROM numbering_counters
		 WHERE tenant_id = ? AND kind = ? AND prefix = ?`,
		tenantID,
		kind,
		prefix,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// seedCounter lazily creates the counter row. Documents that predate the
// counter (or a prefix switched back) still win: seeding starts above the
// highest number already allocated under this prefix.
func (s *Service) seedCounter(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind domain.DocumentKind, prefix string, start int64) (int64, error) {
	maxExisting, err := s.maxAllocated(ctx, tx, tenantID, kind, prefix)
	if err != nil {
		return 0, err
	}
	seed := start
	if maxExisting >= seed {
		seed = maxExisting + 1
	}

	now := s.clock.Now().UTC()
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO numbering_counters (id, tenant_id, kind, prefix, next_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind, prefix) DO NOTHING`,
		s.genID.Generate(),
		tenantID,
		kind,
		prefix,
		seed,
		now,
		now,
	).Error; err != nil {
		return 0, err
	}

	// Re-read: a concurrent seeder may have won the insert.
	next, err := s.currentValue(ctx, tx, tenantID, kind, prefix)
	if err != nil {
		return 0, err
	}
	if next == 0 {
		return 0, domain.ErrAllocationConflict
	}
	return next, nil
}

func (s *Service) maxAllocated(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind domain.DocumentKind, prefix string) (int64, error) {
	var numbers []string
	err := tx.WithContext(ctx).Raw(
		`SELECT document_number FROM `+tableFor(kind)+`
		 WHERE tenant_id = ? AND document_number LIKE ?`,
		tenantID,
		prefix+"%",
	).Scan(&numbers).Error
	if err != nil {
		return 0, err
	}

	var max int64
	for _, number := range numbers {
		raw := strings.TrimPrefix(number, prefix)
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if value > max {
			max = value
		}
	}
	return max, nil
}

func tableFor(kind domain.DocumentKind) string {
	if kind == domain.KindEstimate {
		return "estimates"
	}
	return "invoices"
}

func scopeFor(settings tenantdomain.Settings, kind domain.DocumentKind) (string, int64) {
	if kind == domain.KindEstimate {
		return settings.EstimatePrefix, settings.EstimateStartingNumber
	}
	return settings.InvoicePrefix, settings.InvoiceStartingNumber
}

func defaultPrefix(kind domain.DocumentKind) string {
	if kind == domain.KindEstimate {
		return tenantdomain.DefaultEstimatePrefix
	}
	return tenantdomain.DefaultInvoicePrefix
}
