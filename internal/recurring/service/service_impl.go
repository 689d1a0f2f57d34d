package service

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	numberingdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// invoiceDueDays is the payment term on generated invoices.
const invoiceDueDays = 30

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Documents documentdomain.Service
	Tenants   tenantdomain.Service
	AuditSvc  auditdomain.Service
	Outbox    *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	documents documentdomain.Service
	tenants   tenantdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("recurring.service"),
		genID:     p.GenID,
		documents: p.Documents,
		tenants:   p.Tenants,
		auditSvc:  p.AuditSvc,
		outbox:    p.Outbox,
	}
}

func (s *Service) CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.ProfileDetail, error) {
	if req.TenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}
	if req.ClientID == 0 {
		return nil, documentdomain.ErrInvalidClient
	}
	interval := req.Interval
	if interval == "" {
		interval = domain.IntervalMonth
	}
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}
	if req.StartDate.IsZero() {
		return nil, domain.ErrInvalidSchedule
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, domain.ErrInvalidSchedule
	}
	count := req.IntervalCount
	if count < 1 {
		count = 1
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		settings, err := s.tenants.Get(ctx, req.TenantID)
		if err != nil {
			return nil, err
		}
		currency = settings.Currency
	}

	discountType := req.DiscountType
	if discountType == "" {
		discountType = calculator.DiscountFixed
	}

	var detail *domain.ProfileDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		profile := domain.Profile{
			ID:                s.genID.Generate(),
			TenantID:          req.TenantID,
			ClientID:          req.ClientID,
			Interval:          interval,
			IntervalCount:     count,
			StartDate:         req.StartDate,
			EndDate:           req.EndDate,
			NextRun:           req.StartDate,
			Status:            domain.StatusActive,
			SendAutomatically: req.SendAutomatically,
			Discount:          req.Discount,
			DiscountType:      discountType,
			TaxRate:           req.TaxRate,
			Total:             breakdown.Total,
			Currency:          currency,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
			return err
		}

		items := make([]domain.ProfileItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, domain.ProfileItem{
				ID:          s.genID.Generate(),
				ProfileID:   profile.ID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				CreatedAt:   now,
			})
		}
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}

		detail = &domain.ProfileDetail{Profile: profile, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateProfile replaces the template and schedule of a profile that is
// still running. The next scheduled run is kept unless the profile has
// never fired, in which case it follows the new start date.
func (s *Service) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.ProfileDetail, error) {
	if req.ClientID == 0 {
		return nil, documentdomain.ErrInvalidClient
	}
	interval := req.Interval
	if interval == "" {
		interval = domain.IntervalMonth
	}
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}
	if req.StartDate.IsZero() {
		return nil, domain.ErrInvalidSchedule
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, domain.ErrInvalidSchedule
	}
	count := req.IntervalCount
	if count < 1 {
		count = 1
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}

	discountType := req.DiscountType
	if discountType == "" {
		discountType = calculator.DiscountFixed
	}

	var detail *domain.ProfileDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, txErr := s.findProfile(ctx, tx, req.TenantID, req.ProfileID)
		if txErr != nil {
			return txErr
		}
		if profile.Status == domain.StatusCompleted {
			return domain.ErrProfileNotActive
		}

		currency := req.Currency
		if currency == "" {
			currency = profile.Currency
		}
		nextRun := profile.NextRun
		if profile.LastRun == nil {
			nextRun = req.StartDate
		}

		now := time.Now().UTC()
		if txErr := tx.WithContext(ctx).Exec(
			`UPDATE recurring_profiles
			 SET client_id = ?, interval = ?, interval_count = ?, start_date = ?,
			     end_date = ?, next_run = ?, send_automatically = ?, discount = ?,
			     discount_type = ?, tax_rate = ?, total = ?, currency = ?, updated_at = ?
			 WHERE id = ?`,
			req.ClientID, interval, count, req.StartDate,
			req.EndDate, nextRun, req.SendAutomatically, req.Discount,
			discountType, req.TaxRate, breakdown.Total, currency, now,
			req.ProfileID,
		).Error; txErr != nil {
			return txErr
		}

		if txErr := tx.WithContext(ctx).
			Where("profile_id = ?", req.ProfileID).
			Delete(&domain.ProfileItem{}).Error; txErr != nil {
			return txErr
		}
		items := make([]domain.ProfileItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, domain.ProfileItem{
				ID:          s.genID.Generate(),
				ProfileID:   req.ProfileID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				CreatedAt:   now,
			})
		}
		if txErr := tx.WithContext(ctx).Create(&items).Error; txErr != nil {
			return txErr
		}

		profile.ClientID = req.ClientID
		profile.Interval = interval
		profile.IntervalCount = count
		profile.StartDate = req.StartDate
		profile.EndDate = req.EndDate
		profile.NextRun = nextRun
		profile.SendAutomatically = req.SendAutomatically
		profile.Discount = req.Discount
		profile.DiscountType = discountType
		profile.TaxRate = req.TaxRate
		profile.Total = breakdown.Total
		profile.Currency = currency
		profile.UpdatedAt = now
		detail = &domain.ProfileDetail{Profile: *profile, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) GetProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*domain.ProfileDetail, error) {
	profile, err := s.findProfile(ctx, s.db, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	var items []domain.ProfileItem
	if err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &domain.ProfileDetail{Profile: *profile, Items: items}, nil
}

func (s *Service) ListProfiles(ctx context.Context, tenantID snowflake.ID) ([]domain.Profile, error) {
	if tenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}
	var profiles []domain.Profile
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Service) PauseProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*domain.Profile, error) {
	return s.setStatus(ctx, tenantID, profileID, domain.StatusActive, domain.StatusPaused)
}

func (s *Service) ResumeProfile(ctx context.Context, tenantID, profileID snowflake.ID) (*domain.Profile, error) {
	return s.setStatus(ctx, tenantID, profileID, domain.StatusPaused, domain.StatusActive)
}

func (s *Service) setStatus(ctx context.Context, tenantID, profileID snowflake.ID, from, to domain.ProfileStatus) (*domain.Profile, error) {
	profile, err := s.findProfile(ctx, s.db, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if profile.Status != from {
		return nil, domain.ErrProfileNotActive
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE recurring_profiles SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, profileID, from,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrProfileNotActive
	}
	profile.Status = to
	profile.UpdatedAt = now
	return profile, nil
}

func (s *Service) DeleteProfile(ctx context.Context, tenantID, profileID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findProfile(ctx, tx, tenantID, profileID); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).
			Where("profile_id = ?", profileID).
			Delete(&domain.ProfileItem{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Delete(&domain.Profile{}, profileID).Error
	})
}

// DueProfiles returns active profiles whose next_run has passed. On
// postgres the rows are claimed with SKIP LOCKED so parallel workers do
// not pick the same batch; elsewhere the next_run fence in Fire keeps
// firing exactly-once.
func (s *Service) DueProfiles(ctx context.Context, now time.Time, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).
		Where("status = ? AND next_run <= ? AND (end_date IS NULL OR next_run <= end_date)",
			domain.StatusActive, now).
		Order("next_run").
		Limit(limit)
	if db.SupportsRowLocks(s.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var profiles []domain.Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Service) Fire(ctx context.Context, profileID snowflake.ID, now time.Time) (*domain.FireResult, error) {
	var result *domain.FireResult
	var err error
	for attempt := 1; attempt <= numberingdomain.MaxAllocateAttempts; attempt++ {
		result, err = s.fireOnce(ctx, profileID, now)
		if !errors.Is(err, numberingdomain.ErrAllocationConflict) {
			break
		}
		s.log.Debug("invoice number allocation conflict during recurring fire, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) fireOnce(ctx context.Context, profileID snowflake.ID, now time.Time) (*domain.FireResult, error) {
	var result *domain.FireResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile domain.Profile
		txErr := tx.WithContext(ctx).First(&profile, profileID).Error
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return domain.ErrProfileNotFound
		}
		if txErr != nil {
			return txErr
		}
		if profile.Status != domain.StatusActive {
			return domain.ErrProfileNotActive
		}
		if profile.NextRun.After(now) {
			return domain.ErrProfileNotDue
		}

		var items []domain.ProfileItem
		if txErr := tx.WithContext(ctx).
			Where("profile_id = ?", profileID).
			Order("id").
			Find(&items).Error; txErr != nil {
			return txErr
		}
		lines := make([]calculator.LineItem, 0, len(items))
		for _, item := range items {
			lines = append(lines, calculator.LineItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}

		scheduledRun := profile.NextRun
		nextRun := domain.NextRunAfter(scheduledRun, profile.Interval, profile.IntervalCount)
		status := domain.StatusActive
		if profile.EndDate != nil && nextRun.After(*profile.EndDate) {
			status = domain.StatusCompleted
		}

		// Claim the scheduled run before creating anything. A second
		// worker holding the same stale row loses here and creates
		// nothing.
		fence := tx.WithContext(ctx).Exec(
			`UPDATE recurring_profiles
			 SET next_run = ?, last_run = ?, status = ?, updated_at = ?
			 WHERE id = ? AND next_run = ? AND status = ?`,
			nextRun, scheduledRun, status, now.UTC(),
			profileID, scheduledRun, domain.StatusActive,
		)
		if fence.Error != nil {
			return fence.Error
		}
		if fence.RowsAffected == 0 {
			return domain.ErrProfileNotDue
		}

		created, txErr := s.documents.CreateInvoiceTx(ctx, tx, documentdomain.CreateInvoiceRequest{
			TenantID:     profile.TenantID,
			ClientID:     profile.ClientID,
			IssueDate:    scheduledRun,
			DueDate:      scheduledRun.AddDate(0, 0, invoiceDueDays),
			Items:        lines,
			Discount:     profile.Discount,
			DiscountType: profile.DiscountType,
			TaxRate:      profile.TaxRate,
			Currency:     profile.Currency,
			Metadata:     map[string]any{"recurring_profile_id": profileID.String()},
		})
		if txErr != nil {
			return txErr
		}

		if profile.SendAutomatically {
			sentAt := now.UTC()
			if txErr := tx.WithContext(ctx).Exec(
				`UPDATE invoices SET status = ?, sent_at = ?, updated_at = ? WHERE id = ?`,
				documentdomain.InvoiceStatusSent, sentAt, sentAt, created.Invoice.ID,
			).Error; txErr != nil {
				return txErr
			}
			created.Invoice.Status = documentdomain.InvoiceStatusSent
			created.Invoice.SentAt = &sentAt
			if txErr := s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: profile.TenantID,
				Type:     events.EventRecurringInvoice,
				Payload: events.DocumentPayload{
					DocumentID:     created.Invoice.ID.String(),
					DocumentNumber: created.Invoice.DocumentNumber,
					ClientID:       created.Invoice.ClientID.String(),
				}.ToMap(),
				DedupeKey: events.EventRecurringInvoice + ":" + profileID.String() + ":" + scheduledRun.UTC().Format(time.RFC3339),
			}); txErr != nil {
				return txErr
			}
		}

		entityID := profileID.String()
		if txErr := s.auditSvc.LogTx(ctx, tx, profile.TenantID, auditdomain.ActionRecurringFired, "recurring_profile", &entityID, map[string]any{
			"invoice_id":     created.Invoice.ID.String(),
			"invoice_number": created.Invoice.DocumentNumber,
			"scheduled_run":  scheduledRun.UTC().Format(time.RFC3339),
			"next_run":       nextRun.UTC().Format(time.RFC3339),
			"status":         string(status),
		}); txErr != nil {
			return txErr
		}

		profile.NextRun = nextRun
		profile.LastRun = &scheduledRun
		profile.Status = status
		result = &domain.FireResult{Invoice: created, Profile: profile}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) findProfile(ctx context.Context, db *gorm.DB, tenantID, profileID snowflake.ID) (*domain.Profile, error) {
	if tenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}
	var profile domain.Profile
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", profileID, tenantID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
