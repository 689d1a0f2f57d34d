package service

import (
	"context"
	"errors"
	"strings"
	"time"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	numberingdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Allocator numberingdomain.Allocator
	Tenants   tenantdomain.Service
	AuditSvc  auditdomain.Service
	Outbox    *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	allocator numberingdomain.Allocator
	tenants   tenantdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("document.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		allocator: p.Allocator,
		tenants:   p.Tenants,
		auditSvc:  p.AuditSvc,
		outbox:    p.Outbox,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.InvoiceDetail, error) {
	var detail *domain.InvoiceDetail
	err := s.withAllocationRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			detail, err = s.CreateInvoiceTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CreateInvoiceTx runs the full create path inside the caller's
// transaction: number allocation, totals computation, item inserts and
// the audit entry commit or roll back together.
func (s *Service) CreateInvoiceTx(ctx context.Context, tx *gorm.DB, req domain.CreateInvoiceRequest) (*domain.InvoiceDetail, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.ClientID == 0 {
		return nil, domain.ErrInvalidClient
	}
	if req.IssueDate.IsZero() || req.DueDate.IsZero() || req.DueDate.Before(req.IssueDate) {
		return nil, domain.ErrInvalidDates
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}

	currency, err := s.resolveCurrency(ctx, req.TenantID, req.Currency)
	if err != nil {
		return nil, err
	}

	number, err := s.allocator.Allocate(ctx, tx, req.TenantID, numberingdomain.KindInvoice)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	invoice := domain.Invoice{
		ID:               s.genID.Generate(),
		TenantID:         req.TenantID,
		ClientID:         req.ClientID,
		DocumentNumber:   number,
		Status:           domain.InvoiceStatusDraft,
		IssueDate:        req.IssueDate,
		DueDate:          req.DueDate,
		Subtotal:         breakdown.Subtotal,
		Discount:         req.Discount,
		DiscountType:     normalizeDiscountType(req.DiscountType),
		TaxRate:          req.TaxRate,
		TaxAmount:        breakdown.TaxAmount,
		Total:            breakdown.Total,
		Currency:         currency,
		Notes:            req.Notes,
		Terms:            req.Terms,
		SourceEstimateID: req.SourceEstimateID,
		Metadata:         toJSONMap(req.Metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}

	items, err := s.insertInvoiceItems(ctx, tx, invoice.ID, req.Items, now)
	if err != nil {
		return nil, err
	}

	entityID := invoice.ID.String()
	if err := s.auditSvc.LogTx(ctx, tx, req.TenantID, auditdomain.ActionInvoiceCreated, "invoice", &entityID, map[string]any{
		"document_number": number,
		"client_id":       req.ClientID.String(),
		"total":           breakdown.Total.String(),
	}); err != nil {
		return nil, err
	}

	return &domain.InvoiceDetail{Invoice: invoice, Items: items}, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, req domain.UpdateInvoiceRequest) (*domain.InvoiceDetail, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.ClientID == 0 {
		return nil, domain.ErrInvalidClient
	}
	if req.IssueDate.IsZero() || req.DueDate.IsZero() || req.DueDate.Before(req.IssueDate) {
		return nil, domain.ErrInvalidDates
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}

	var detail *domain.InvoiceDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.findInvoice(ctx, tx, req.TenantID, req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.EditLocked() {
			return domain.ErrDocumentLocked
		}

		now := s.clock.Now().UTC()
		invoice.ClientID = req.ClientID
		invoice.IssueDate = req.IssueDate
		invoice.DueDate = req.DueDate
		invoice.Subtotal = breakdown.Subtotal
		invoice.Discount = req.Discount
		invoice.DiscountType = normalizeDiscountType(req.DiscountType)
		invoice.TaxRate = req.TaxRate
		invoice.TaxAmount = breakdown.TaxAmount
		invoice.Total = breakdown.Total
		if req.Currency != "" {
			invoice.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		}
		invoice.Notes = req.Notes
		invoice.Terms = req.Terms
		invoice.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).
			Where("invoice_id = ?", invoice.ID).
			Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		items, err := s.insertInvoiceItems(ctx, tx, invoice.ID, req.Items, now)
		if err != nil {
			return err
		}

		entityID := invoice.ID.String()
		if err := s.auditSvc.LogTx(ctx, tx, req.TenantID, auditdomain.ActionInvoiceUpdated, "invoice", &entityID, map[string]any{
			"document_number": invoice.DocumentNumber,
			"total":           breakdown.Total.String(),
		}); err != nil {
			return err
		}

		detail = &domain.InvoiceDetail{Invoice: *invoice, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) GetInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*domain.InvoiceDetail, error) {
	invoice, err := s.findInvoice(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	var items []domain.InvoiceItem
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	invoice.Status = invoice.EffectiveStatus(s.clock.Now())
	return &domain.InvoiceDetail{Invoice: *invoice, Items: items}, nil
}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListRequest) ([]domain.Invoice, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	query := s.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("tenant_id = ?", req.TenantID)
	if req.ClientID != 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	now := s.clock.Now()
	switch req.Status {
	case "":
	case string(domain.InvoiceStatusOverdue):
		query = query.Where("status IN ? AND due_date < ? AND paid_amount < total",
			[]domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusPartiallyPaid}, now)
	default:
		query = query.Where("status = ?", req.Status)
	}
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var invoices []domain.Invoice
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&invoices).Error; err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Status = invoices[i].EffectiveStatus(now)
	}
	return invoices, nil
}

func (s *Service) SendInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.findInvoice(ctx, tx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceStatusDraft {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, sent_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			domain.InvoiceStatusSent, now, now, invoiceID, domain.InvoiceStatusDraft,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		invoice.Status = domain.InvoiceStatusSent
		invoice.SentAt = &now
		invoice.UpdatedAt = now

		entityID := invoice.ID.String()
		if err := s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionInvoiceSent, "invoice", &entityID, map[string]any{
			"document_number": invoice.DocumentNumber,
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			TenantID: tenantID,
			Type:     events.EventInvoiceSent,
			Payload: events.DocumentPayload{
				DocumentID:     invoice.ID.String(),
				DocumentNumber: invoice.DocumentNumber,
				ClientID:       invoice.ClientID.String(),
			}.ToMap(),
			DedupeKey: events.EventInvoiceSent + ":" + invoice.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) CancelInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = s.findInvoice(ctx, tx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceStatusPaid {
			return domain.ErrDocumentLocked
		}
		if invoice.Status == domain.InvoiceStatusCancelled {
			return nil
		}

		now := s.clock.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ?
			 WHERE id = ? AND status NOT IN (?, ?)`,
			domain.InvoiceStatusCancelled, now, invoiceID,
			domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrDocumentLocked
		}
		invoice.Status = domain.InvoiceStatusCancelled
		invoice.UpdatedAt = now

		entityID := invoice.ID.String()
		return s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionInvoiceCancelled, "invoice", &entityID, map[string]any{
			"document_number": invoice.DocumentNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.findInvoice(ctx, tx, tenantID, invoiceID)
		if err != nil {
			return err
		}

		var paymentCount int64
		if err := tx.WithContext(ctx).
			Model(&paymentTransactionRef{}).
			Where("invoice_id = ?", invoiceID).
			Count(&paymentCount).Error; err != nil {
			return err
		}
		if paymentCount > 0 {
			return domain.ErrDocumentHasPayments
		}

		if err := tx.WithContext(ctx).
			Where("invoice_id = ?", invoiceID).
			Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&domain.Invoice{}, invoiceID).Error; err != nil {
			return err
		}

		entityID := invoiceID.String()
		return s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionInvoiceDeleted, "invoice", &entityID, map[string]any{
			"document_number": invoice.DocumentNumber,
		})
	})
}

func (s *Service) CreateEstimate(ctx context.Context, req domain.CreateEstimateRequest) (*domain.EstimateDetail, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.ClientID == 0 {
		return nil, domain.ErrInvalidClient
	}
	if req.IssueDate.IsZero() || req.ExpiryDate.IsZero() || req.ExpiryDate.Before(req.IssueDate) {
		return nil, domain.ErrInvalidDates
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}
	currency, err := s.resolveCurrency(ctx, req.TenantID, req.Currency)
	if err != nil {
		return nil, err
	}

	var detail *domain.EstimateDetail
	err = s.withAllocationRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := s.allocator.Allocate(ctx, tx, req.TenantID, numberingdomain.KindEstimate)
			if err != nil {
				return err
			}

			now := s.clock.Now().UTC()
			estimate := domain.Estimate{
				ID:             s.genID.Generate(),
				TenantID:       req.TenantID,
				ClientID:       req.ClientID,
				DocumentNumber: number,
				Status:         domain.EstimateStatusDraft,
				IssueDate:      req.IssueDate,
				ExpiryDate:     req.ExpiryDate,
				Subtotal:       breakdown.Subtotal,
				Discount:       req.Discount,
				DiscountType:   normalizeDiscountType(req.DiscountType),
				TaxRate:        req.TaxRate,
				TaxAmount:      breakdown.TaxAmount,
				Total:          breakdown.Total,
				Currency:       currency,
				Notes:          req.Notes,
				Terms:          req.Terms,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.WithContext(ctx).Create(&estimate).Error; err != nil {
				return err
			}
			items, err := s.insertEstimateItems(ctx, tx, estimate.ID, req.Items, now)
			if err != nil {
				return err
			}

			entityID := estimate.ID.String()
			if err := s.auditSvc.LogTx(ctx, tx, req.TenantID, auditdomain.ActionEstimateCreated, "estimate", &entityID, map[string]any{
				"document_number": number,
				"client_id":       req.ClientID.String(),
				"total":           breakdown.Total.String(),
			}); err != nil {
				return err
			}

			detail = &domain.EstimateDetail{Estimate: estimate, Items: items}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) UpdateEstimate(ctx context.Context, req domain.UpdateEstimateRequest) (*domain.EstimateDetail, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.ClientID == 0 {
		return nil, domain.ErrInvalidClient
	}
	if req.IssueDate.IsZero() || req.ExpiryDate.IsZero() || req.ExpiryDate.Before(req.IssueDate) {
		return nil, domain.ErrInvalidDates
	}

	breakdown, err := calculator.Compute(req.Items, req.Discount, req.DiscountType, req.TaxRate)
	if err != nil {
		return nil, err
	}

	var detail *domain.EstimateDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		estimate, err := s.findEstimate(ctx, tx, req.TenantID, req.EstimateID)
		if err != nil {
			return err
		}
		if estimate.EditLocked() {
			return domain.ErrDocumentLocked
		}

		now := s.clock.Now().UTC()
		estimate.ClientID = req.ClientID
		estimate.IssueDate = req.IssueDate
		estimate.ExpiryDate = req.ExpiryDate
		estimate.Subtotal = breakdown.Subtotal
		estimate.Discount = req.Discount
		estimate.DiscountType = normalizeDiscountType(req.DiscountType)
		estimate.TaxRate = req.TaxRate
		estimate.TaxAmount = breakdown.TaxAmount
		estimate.Total = breakdown.Total
		if req.Currency != "" {
			estimate.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		}
		estimate.Notes = req.Notes
		estimate.Terms = req.Terms
		estimate.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(estimate).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).
			Where("estimate_id = ?", estimate.ID).
			Delete(&domain.EstimateItem{}).Error; err != nil {
			return err
		}
		items, err := s.insertEstimateItems(ctx, tx, estimate.ID, req.Items, now)
		if err != nil {
			return err
		}

		entityID := estimate.ID.String()
		if err := s.auditSvc.LogTx(ctx, tx, req.TenantID, auditdomain.ActionEstimateUpdated, "estimate", &entityID, map[string]any{
			"document_number": estimate.DocumentNumber,
			"total":           breakdown.Total.String(),
		}); err != nil {
			return err
		}

		detail = &domain.EstimateDetail{Estimate: *estimate, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) GetEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*domain.EstimateDetail, error) {
	estimate, err := s.findEstimate(ctx, s.db, tenantID, estimateID)
	if err != nil {
		return nil, err
	}
	var items []domain.EstimateItem
	if err := s.db.WithContext(ctx).
		Where("estimate_id = ?", estimateID).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	estimate.Status = estimate.EffectiveStatus(s.clock.Now())
	return &domain.EstimateDetail{Estimate: *estimate, Items: items}, nil
}

func (s *Service) ListEstimates(ctx context.Context, req domain.ListRequest) ([]domain.Estimate, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	query := s.db.WithContext(ctx).
		Model(&domain.Estimate{}).
		Where("tenant_id = ?", req.TenantID)
	if req.ClientID != 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	now := s.clock.Now()
	switch req.Status {
	case "":
	case string(domain.EstimateStatusExpired):
		query = query.Where("status = ? AND expiry_date < ?", domain.EstimateStatusSent, now)
	default:
		query = query.Where("status = ?", req.Status)
	}
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var estimates []domain.Estimate
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&estimates).Error; err != nil {
		return nil, err
	}
	for i := range estimates {
		estimates[i].Status = estimates[i].EffectiveStatus(now)
	}
	return estimates, nil
}

func (s *Service) SendEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*domain.Estimate, error) {
	var estimate *domain.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		estimate, err = s.findEstimate(ctx, tx, tenantID, estimateID)
		if err != nil {
			return err
		}
		if estimate.Status != domain.EstimateStatusDraft {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE estimates SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			domain.EstimateStatusSent, now, estimateID, domain.EstimateStatusDraft,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		estimate.Status = domain.EstimateStatusSent
		estimate.UpdatedAt = now

		entityID := estimate.ID.String()
		if err := s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionEstimateSent, "estimate", &entityID, map[string]any{
			"document_number": estimate.DocumentNumber,
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			TenantID: tenantID,
			Type:     events.EventEstimateSent,
			Payload: events.DocumentPayload{
				DocumentID:     estimate.ID.String(),
				DocumentNumber: estimate.DocumentNumber,
				ClientID:       estimate.ClientID.String(),
			}.ToMap(),
			DedupeKey: events.EventEstimateSent + ":" + estimate.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return estimate, nil
}

func (s *Service) AcceptEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*domain.Estimate, error) {
	return s.resolveEstimate(ctx, tenantID, estimateID, domain.EstimateStatusAccepted)
}

func (s *Service) DeclineEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) (*domain.Estimate, error) {
	return s.resolveEstimate(ctx, tenantID, estimateID, domain.EstimateStatusDeclined)
}

func (s *Service) resolveEstimate(ctx context.Context, tenantID, estimateID snowflake.ID, target domain.EstimateStatus) (*domain.Estimate, error) {
	var estimate *domain.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		estimate, err = s.findEstimate(ctx, tx, tenantID, estimateID)
		if err != nil {
			return err
		}
		if estimate.EffectiveStatus(s.clock.Now()) != domain.EstimateStatusSent {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`UPDATE estimates SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			target, now, estimateID, domain.EstimateStatusSent,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		estimate.Status = target
		estimate.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return estimate, nil
}

func (s *Service) DeleteEstimate(ctx context.Context, tenantID, estimateID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		estimate, err := s.findEstimate(ctx, tx, tenantID, estimateID)
		if err != nil {
			return err
		}
		if estimate.EditLocked() {
			return domain.ErrDocumentLocked
		}

		if err := tx.WithContext(ctx).
			Where("estimate_id = ?", estimateID).
			Delete(&domain.EstimateItem{}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&domain.Estimate{}, estimateID).Error; err != nil {
			return err
		}

		entityID := estimateID.String()
		return s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionEstimateDeleted, "estimate", &entityID, map[string]any{
			"document_number": estimate.DocumentNumber,
		})
	})
}

// MarkLapsed persists the derived overdue and expired statuses so
// reports querying stored status catch up with what reads already
// derive. Partially paid invoices keep their status, the overdue read
// stays derived for those.
func (s *Service) MarkLapsed(ctx context.Context, asOf time.Time) (int64, error) {
	asOf = asOf.UTC()
	var lapsed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ?
			 WHERE status = ? AND due_date < ? AND paid_amount < total`,
			domain.InvoiceStatusOverdue, asOf, domain.InvoiceStatusSent, asOf,
		)
		if result.Error != nil {
			return result.Error
		}
		lapsed += result.RowsAffected

		result = tx.WithContext(ctx).Exec(
			`UPDATE estimates SET status = ?, updated_at = ?
			 WHERE status = ? AND expiry_date < ?`,
			domain.EstimateStatusExpired, asOf, domain.EstimateStatusSent, asOf,
		)
		if result.Error != nil {
			return result.Error
		}
		lapsed += result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lapsed, nil
}

func (s *Service) findInvoice(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", invoiceID, tenantID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) findEstimate(ctx context.Context, db *gorm.DB, tenantID, estimateID snowflake.ID) (*domain.Estimate, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	var estimate domain.Estimate
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", estimateID, tenantID).
		First(&estimate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEstimateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &estimate, nil
}

func (s *Service) insertInvoiceItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, items []calculator.LineItem, now time.Time) ([]domain.InvoiceItem, error) {
	rows := make([]domain.InvoiceItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, domain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			CreatedAt:   now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) insertEstimateItems(ctx context.Context, tx *gorm.DB, estimateID snowflake.ID, items []calculator.LineItem, now time.Time) ([]domain.EstimateItem, error) {
	rows := make([]domain.EstimateItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, domain.EstimateItem{
			ID:          s.genID.Generate(),
			EstimateID:  estimateID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			CreatedAt:   now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) resolveCurrency(ctx context.Context, tenantID snowflake.ID, currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" {
		return currency, nil
	}
	settings, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return settings.Currency, nil
}

// withAllocationRetry re-runs the create when the numbering fence lost a
// race. Conflicts are expected under concurrent load and invisible to
// the caller.
func (s *Service) withAllocationRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= numberingdomain.MaxAllocateAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, numberingdomain.ErrAllocationConflict) {
			return err
		}
		s.log.Debug("document number allocation conflict, retrying", zap.Int("attempt", attempt))
	}
	return err
}

func normalizeDiscountType(t calculator.DiscountType) calculator.DiscountType {
	if t == "" {
		return calculator.DiscountFixed
	}
	return t
}

func toJSONMap(in map[string]any) datatypes.JSONMap {
	if len(in) == 0 {
		return datatypes.JSONMap{}
	}
	out := datatypes.JSONMap{}
	for key, value := range in {
		out[key] = value
	}
	return out
}

// paymentTransactionRef avoids importing the payment domain for a count.
type paymentTransactionRef struct{}

func (paymentTransactionRef) TableName() string { return "payment_transactions" }
