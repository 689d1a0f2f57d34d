package service

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/domain"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	numberingdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// invoiceDueDays is the payment term granted to converted invoices.
const invoiceDueDays = 30

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Documents documentdomain.Service
	AuditSvc  auditdomain.Service
	Outbox    *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	documents documentdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("conversion.service"),
		clock:     p.Clock,
		documents: p.Documents,
		auditSvc:  p.AuditSvc,
		outbox:    p.Outbox,
	}
}

func (s *Service) Convert(ctx context.Context, tenantID, estimateID snowflake.ID) (*documentdomain.InvoiceDetail, error) {
	if tenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}

	var detail *documentdomain.InvoiceDetail
	var err error
	for attempt := 1; attempt <= numberingdomain.MaxAllocateAttempts; attempt++ {
		detail, err = s.convertOnce(ctx, tenantID, estimateID)
		if !errors.Is(err, numberingdomain.ErrAllocationConflict) {
			break
		}
		s.log.Debug("invoice number allocation conflict during conversion, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("estimate converted",
		zap.String("estimate_id", estimateID.String()),
		zap.String("invoice_id", detail.Invoice.ID.String()),
	)
	return detail, nil
}

func (s *Service) convertOnce(ctx context.Context, tenantID, estimateID snowflake.ID) (*documentdomain.InvoiceDetail, error) {
	var detail *documentdomain.InvoiceDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var estimate documentdomain.Estimate
		txErr := tx.WithContext(ctx).
			Where("id = ? AND tenant_id = ?", estimateID, tenantID).
			First(&estimate).Error
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return documentdomain.ErrEstimateNotFound
		}
		if txErr != nil {
			return txErr
		}
		if estimate.Status == documentdomain.EstimateStatusConverted {
			return domain.ErrAlreadyConverted
		}
		if estimate.Status == documentdomain.EstimateStatusDeclined {
			return documentdomain.ErrInvalidTransition
		}

		var items []documentdomain.EstimateItem
		if txErr := tx.WithContext(ctx).
			Where("estimate_id = ?", estimateID).
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

		now := s.clock.Now().UTC()
		issueDate := now.Truncate(24 * time.Hour)
		sourceID := estimate.ID
		created, txErr := s.documents.CreateInvoiceTx(ctx, tx, documentdomain.CreateInvoiceRequest{
			TenantID:         tenantID,
			ClientID:         estimate.ClientID,
			IssueDate:        issueDate,
			DueDate:          issueDate.AddDate(0, 0, invoiceDueDays),
			Items:            lines,
			Discount:         estimate.Discount,
			DiscountType:     estimate.DiscountType,
			TaxRate:          estimate.TaxRate,
			Currency:         estimate.Currency,
			Notes:            estimate.Notes,
			Terms:            estimate.Terms,
			SourceEstimateID: &sourceID,
		})
		if txErr != nil {
			return txErr
		}

		// The status fence is what makes double conversion impossible
		// under concurrency; the unique index on converted_to_invoice_id
		// backs it up.
		fence := tx.WithContext(ctx).Exec(
			`UPDATE estimates SET status = ?, converted_to_invoice_id = ?, updated_at = ?
			 WHERE id = ? AND status <> ?`,
			documentdomain.EstimateStatusConverted, created.Invoice.ID, now,
			estimateID, documentdomain.EstimateStatusConverted,
		)
		if fence.Error != nil {
			return fence.Error
		}
		if fence.RowsAffected == 0 {
			return domain.ErrAlreadyConverted
		}

		entityID := estimate.ID.String()
		if txErr := s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionEstimateConverted, "estimate", &entityID, map[string]any{
			"estimate_number": estimate.DocumentNumber,
			"invoice_id":      created.Invoice.ID.String(),
			"invoice_number":  created.Invoice.DocumentNumber,
		}); txErr != nil {
			return txErr
		}
		if txErr := s.outbox.PublishTx(ctx, tx, events.Event{
			TenantID: tenantID,
			Type:     events.EventEstimateConverted,
			Payload: events.DocumentPayload{
				DocumentID:     created.Invoice.ID.String(),
				DocumentNumber: created.Invoice.DocumentNumber,
				ClientID:       created.Invoice.ClientID.String(),
			}.ToMap(),
			DedupeKey: events.EventEstimateConverted + ":" + estimate.ID.String(),
		}); txErr != nil {
			return txErr
		}

		detail = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}
