package service

import (
	"context"
	"errors"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/money"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxRecordAttempts bounds retries when the paid_amount fence loses a
// race with a concurrent payment on the same invoice.
const maxRecordAttempts = 3

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.RecordResult, error) {
	if req.TenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.clock.Now().UTC()
	}

	var result *domain.RecordResult
	var err error
	for attempt := 1; attempt <= maxRecordAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invoice, txErr := s.loadInvoice(ctx, tx, req.TenantID, req.InvoiceID)
			if txErr != nil {
				return txErr
			}
			if invoice.Status == documentdomain.InvoiceStatusCancelled {
				return documentdomain.ErrDocumentLocked
			}

			alreadyPaid := money.Round(invoice.PaidAmount)
			newPaid := alreadyPaid.Add(amount)
			if newPaid.GreaterThan(invoice.Total) {
				return &domain.OverpaymentError{
					Total:       invoice.Total,
					AlreadyPaid: alreadyPaid,
					MaxPayment:  invoice.Total.Sub(alreadyPaid),
				}
			}

			status := documentdomain.InvoiceStatusPartiallyPaid
			if newPaid.Equal(invoice.Total) {
				status = documentdomain.InvoiceStatusPaid
			}

			now := s.clock.Now().UTC()
			fence := tx.WithContext(ctx).Exec(
				`UPDATE invoices SET paid_amount = ?, status = ?, updated_at = ?
				 WHERE id = ? AND paid_amount = ?`,
				newPaid, status, now, invoice.ID, invoice.PaidAmount,
			)
			if fence.Error != nil {
				return fence.Error
			}
			if fence.RowsAffected == 0 {
				return domain.ErrConcurrentUpdate
			}

			transaction := domain.Transaction{
				ID:              s.genID.Generate(),
				TenantID:        req.TenantID,
				InvoiceID:       invoice.ID,
				Amount:          amount,
				PaymentDate:     paymentDate,
				PaymentMethod:   req.PaymentMethod,
				ReferenceNumber: req.ReferenceNumber,
				Notes:           req.Notes,
				CreatedAt:       now,
			}
			if txErr := tx.WithContext(ctx).Create(&transaction).Error; txErr != nil {
				return txErr
			}

			entityID := invoice.ID.String()
			if txErr := s.auditSvc.LogTx(ctx, tx, req.TenantID, auditdomain.ActionPaymentRecorded, "invoice", &entityID, map[string]any{
				"transaction_id": transaction.ID.String(),
				"amount":         amount.String(),
				"paid_amount":    newPaid.String(),
				"status":         string(status),
			}); txErr != nil {
				return txErr
			}

			result = &domain.RecordResult{
				Transaction: transaction,
				PaidAmount:  newPaid,
				Balance:     invoice.Total.Sub(newPaid),
				Status:      string(status),
			}
			return nil
		})
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			break
		}
		s.log.Debug("invoice paid_amount fence lost, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, transactionID snowflake.ID) (*domain.RecordResult, error) {
	if tenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}

	var result *domain.RecordResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var transaction domain.Transaction
		txErr := tx.WithContext(ctx).
			Where("id = ?", transactionID).
			First(&transaction).Error
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return domain.ErrTransactionNotFound
		}
		if txErr != nil {
			return txErr
		}
		if transaction.TenantID != tenantID {
			return domain.ErrForbidden
		}

		invoice, txErr := s.loadInvoice(ctx, tx, tenantID, transaction.InvoiceID)
		if txErr != nil {
			return txErr
		}

		if txErr := tx.WithContext(ctx).Delete(&domain.Transaction{}, transactionID).Error; txErr != nil {
			return txErr
		}

		// Recompute from the surviving rows rather than subtracting, so
		// the projection self-heals if it ever drifted.
		var remaining []domain.Transaction
		if txErr := tx.WithContext(ctx).
			Where("invoice_id = ?", invoice.ID).
			Find(&remaining).Error; txErr != nil {
			return txErr
		}
		newPaid := decimal.Zero
		for _, row := range remaining {
			newPaid = newPaid.Add(row.Amount)
		}
		newPaid = money.Round(newPaid)

		status := invoice.Status
		switch {
		case newPaid.IsZero():
			// Only invoices that actually went out revert to sent; a
			// payment recorded against a draft leaves it a draft.
			status = documentdomain.InvoiceStatusDraft
			if invoice.SentAt != nil {
				status = documentdomain.InvoiceStatusSent
			}
		case newPaid.GreaterThanOrEqual(invoice.Total):
			status = documentdomain.InvoiceStatusPaid
		default:
			status = documentdomain.InvoiceStatusPartiallyPaid
		}

		now := s.clock.Now().UTC()
		if txErr := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET paid_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
			newPaid, status, now, invoice.ID,
		).Error; txErr != nil {
			return txErr
		}

		entityID := invoice.ID.String()
		if txErr := s.auditSvc.LogTx(ctx, tx, tenantID, auditdomain.ActionPaymentDeleted, "invoice", &entityID, map[string]any{
			"transaction_id": transactionID.String(),
			"amount":         transaction.Amount.String(),
			"paid_amount":    newPaid.String(),
			"status":         string(status),
		}); txErr != nil {
			return txErr
		}

		result = &domain.RecordResult{
			Transaction: transaction,
			PaidAmount:  newPaid,
			Balance:     invoice.Total.Sub(newPaid),
			Status:      string(status),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, tenantID, invoiceID snowflake.ID) ([]domain.Transaction, error) {
	if tenantID == 0 {
		return nil, documentdomain.ErrInvalidTenant
	}
	var transactions []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("payment_date DESC, id DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// loadInvoice scopes by id first so a cross-tenant hit reads as
// forbidden instead of not found.
func (s *Service) loadInvoice(ctx context.Context, tx *gorm.DB, tenantID, invoiceID snowflake.ID) (*documentdomain.Invoice, error) {
	var invoice documentdomain.Invoice
	err := tx.WithContext(ctx).
		Where("id = ?", invoiceID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, documentdomain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	if invoice.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return &invoice, nil
}
