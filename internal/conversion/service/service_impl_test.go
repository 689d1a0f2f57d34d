package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	auditrepository "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/repository"
	auditservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/calculator"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/domain"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	documentservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/migration"
	numberingservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/service"
	tenantservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/service"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type conversionFixture struct {
	conn        *gorm.DB
	conversions domain.Service
	docs        documentdomain.Service
}

func setupConversionTest(t *testing.T) conversionFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:conversion_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := fixedClock{at: testNow}
	tenants := tenantservice.NewService(tenantservice.Params{DB: conn, Log: zap.NewNop()})
	allocator := numberingservice.NewService(numberingservice.Params{
		Log: zap.NewNop(), GenID: node, Clock: clk, Tenants: tenants,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Repo: auditrepository.Provide(),
	})
	outbox := events.NewOutbox(conn, node)
	docs := documentservice.NewService(documentservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Allocator: allocator,
		Tenants:   tenants,
		AuditSvc:  auditSvc,
		Outbox:    outbox,
	})
	conversions := NewService(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Clock:     clk,
		Documents: docs,
		AuditSvc:  auditSvc,
		Outbox:    outbox,
	})
	return conversionFixture{conn: conn, conversions: conversions, docs: docs}
}

// acceptedEstimate creates an estimate totalling 330.00 (3 x 100 + 10% tax)
// and walks it to accepted.
func acceptedEstimate(t *testing.T, f conversionFixture, tenantID snowflake.ID) documentdomain.Estimate {
	t.Helper()
	ctx := context.Background()
	detail, err := f.docs.CreateEstimate(ctx, documentdomain.CreateEstimateRequest{
		TenantID:   tenantID,
		ClientID:   9,
		IssueDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Items: []calculator.LineItem{
			{Description: "design", Quantity: dec("1"), UnitPrice: dec("100.00")},
			{Description: "build", Quantity: dec("2"), UnitPrice: dec("100.00")},
		},
		TaxRate: dec("10"),
		Notes:   "net 30",
	})
	if err != nil {
		t.Fatalf("create estimate: %v", err)
	}
	if _, err := f.docs.SendEstimate(ctx, tenantID, detail.Estimate.ID); err != nil {
		t.Fatalf("send estimate: %v", err)
	}
	accepted, err := f.docs.AcceptEstimate(ctx, tenantID, detail.Estimate.ID)
	if err != nil {
		t.Fatalf("accept estimate: %v", err)
	}
	return *accepted
}

func TestConvertAcceptedEstimate(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)

	detail, err := f.conversions.Convert(context.Background(), 1, est.ID)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	inv := detail.Invoice
	if inv.DocumentNumber != "INV1000" {
		t.Fatalf("number = %s, want INV1000", inv.DocumentNumber)
	}
	if inv.Status != documentdomain.InvoiceStatusDraft {
		t.Fatalf("status = %s, want draft", inv.Status)
	}
	if got := inv.Total.StringFixed(2); got != "330.00" {
		t.Fatalf("total = %s, want 330.00", got)
	}
	if inv.SourceEstimateID == nil || *inv.SourceEstimateID != est.ID {
		t.Fatalf("source estimate = %v, want %v", inv.SourceEstimateID, est.ID)
	}
	if inv.Notes != "net 30" {
		t.Fatalf("notes = %q, want %q", inv.Notes, "net 30")
	}
	if len(detail.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(detail.Items))
	}

	wantIssue := testNow.Truncate(24 * time.Hour)
	if !inv.IssueDate.Equal(wantIssue) {
		t.Fatalf("issue date = %v, want %v", inv.IssueDate, wantIssue)
	}
	if !inv.DueDate.Equal(wantIssue.AddDate(0, 0, 30)) {
		t.Fatalf("due date = %v, want %v", inv.DueDate, wantIssue.AddDate(0, 0, 30))
	}

	// The estimate now carries the back-link.
	got, err := f.docs.GetEstimate(context.Background(), 1, est.ID)
	if err != nil {
		t.Fatalf("get estimate: %v", err)
	}
	if got.Estimate.Status != documentdomain.EstimateStatusConverted {
		t.Fatalf("estimate status = %s, want converted", got.Estimate.Status)
	}
	if got.Estimate.ConvertedToInvoiceID == nil || *got.Estimate.ConvertedToInvoiceID != inv.ID {
		t.Fatalf("converted_to_invoice_id = %v, want %v", got.Estimate.ConvertedToInvoiceID, inv.ID)
	}
}

func TestConvertSentEstimateAllowed(t *testing.T) {
	f := setupConversionTest(t)
	ctx := context.Background()

	detail, err := f.docs.CreateEstimate(ctx, documentdomain.CreateEstimateRequest{
		TenantID:   1,
		ClientID:   9,
		IssueDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Items: []calculator.LineItem{
			{Description: "audit", Quantity: dec("1"), UnitPrice: dec("250.00")},
		},
	})
	if err != nil {
		t.Fatalf("create estimate: %v", err)
	}
	if _, err := f.docs.SendEstimate(ctx, 1, detail.Estimate.ID); err != nil {
		t.Fatalf("send estimate: %v", err)
	}

	if _, err := f.conversions.Convert(ctx, 1, detail.Estimate.ID); err != nil {
		t.Fatalf("convert sent estimate: %v", err)
	}
}

func TestConvertTwiceRefused(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)
	ctx := context.Background()

	if _, err := f.conversions.Convert(ctx, 1, est.ID); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	if _, err := f.conversions.Convert(ctx, 1, est.ID); !errors.Is(err, domain.ErrAlreadyConverted) {
		t.Fatalf("expected ErrAlreadyConverted, got %v", err)
	}

	// Only one invoice exists for the estimate.
	var count int64
	if err := f.conn.Table("invoices").
		Where("source_estimate_id = ?", est.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 1 {
		t.Fatalf("invoices = %d, want 1", count)
	}
}

func TestConvertDeclinedEstimateRefused(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)
	ctx := context.Background()

	// Force declined directly; the service state machine will not allow
	// declining after accept.
	if err := f.conn.Exec(`UPDATE estimates SET status = 'declined' WHERE id = ?`, est.ID).Error; err != nil {
		t.Fatalf("mark declined: %v", err)
	}

	if _, err := f.conversions.Convert(ctx, 1, est.ID); !errors.Is(err, documentdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConvertedEstimateIsLocked(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)
	ctx := context.Background()

	if _, err := f.conversions.Convert(ctx, 1, est.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}

	_, err := f.docs.UpdateEstimate(ctx, documentdomain.UpdateEstimateRequest{
		TenantID:   1,
		EstimateID: est.ID,
		ClientID:   9,
		IssueDate:  est.IssueDate,
		ExpiryDate: est.ExpiryDate,
		Items: []calculator.LineItem{
			{Description: "revised", Quantity: dec("1"), UnitPrice: dec("1.00")},
		},
	})
	if !errors.Is(err, documentdomain.ErrDocumentLocked) {
		t.Fatalf("expected ErrDocumentLocked, got %v", err)
	}
}

func TestConvertUnknownEstimate(t *testing.T) {
	f := setupConversionTest(t)

	if _, err := f.conversions.Convert(context.Background(), 1, 123456); !errors.Is(err, documentdomain.ErrEstimateNotFound) {
		t.Fatalf("expected ErrEstimateNotFound, got %v", err)
	}
}

func TestConvertCrossTenantNotFound(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)

	if _, err := f.conversions.Convert(context.Background(), 2, est.ID); !errors.Is(err, documentdomain.ErrEstimateNotFound) {
		t.Fatalf("expected ErrEstimateNotFound, got %v", err)
	}
}

func TestConvertWritesOutboxEvent(t *testing.T) {
	f := setupConversionTest(t)
	est := acceptedEstimate(t, f, 1)

	if _, err := f.conversions.Convert(context.Background(), 1, est.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}

	var count int64
	if err := f.conn.Table("billing_events").
		Where("tenant_id = ? AND event_type = ?", 1, events.EventEstimateConverted).
		Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("events = %d, want 1", count)
	}
}
