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
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	documentservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/migration"
	numberingservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/domain"
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

type paymentFixture struct {
	conn     *gorm.DB
	payments domain.Service
	docs     documentdomain.Service
}

func setupPaymentTest(t *testing.T) paymentFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
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
	payments := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		AuditSvc: auditSvc,
	})
	return paymentFixture{conn: conn, payments: payments, docs: docs}
}

// sentInvoice creates an invoice totalling 100.00 and moves it to sent.
func sentInvoice(t *testing.T, f paymentFixture, tenantID snowflake.ID) documentdomain.Invoice {
	t.Helper()
	detail, err := f.docs.CreateInvoice(context.Background(), documentdomain.CreateInvoiceRequest{
		TenantID:  tenantID,
		ClientID:  7,
		IssueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Items: []calculator.LineItem{
			{Description: "retainer", Quantity: dec("1"), UnitPrice: dec("100.00")},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	sent, err := f.docs.SendInvoice(context.Background(), tenantID, detail.Invoice.ID)
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	return *sent
}

func invoiceState(t *testing.T, conn *gorm.DB, id snowflake.ID) (string, string) {
	t.Helper()
	var row struct {
		Status     string
		PaidAmount decimal.Decimal
	}
	if err := conn.Table("invoices").
		Select("status, paid_amount").
		Where("id = ?", id).
		Scan(&row).Error; err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	return row.Status, row.PaidAmount.StringFixed(2)
}

func TestRecordPartialPayment(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID:  1,
		InvoiceID: inv.ID,
		Amount:    dec("40.00"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if res.Status != "partially_paid" {
		t.Fatalf("status = %s, want partially_paid", res.Status)
	}
	if got := res.PaidAmount.StringFixed(2); got != "40.00" {
		t.Fatalf("paid = %s, want 40.00", got)
	}
	if got := res.Balance.StringFixed(2); got != "60.00" {
		t.Fatalf("balance = %s, want 60.00", got)
	}
	// Unset payment date defaults to now.
	if !res.Transaction.PaymentDate.Equal(testNow) {
		t.Fatalf("payment date = %v, want %v", res.Transaction.PaymentDate, testNow)
	}

	status, paid := invoiceState(t, f.conn, inv.ID)
	if status != "partially_paid" || paid != "40.00" {
		t.Fatalf("invoice = %s/%s, want partially_paid/40.00", status, paid)
	}
}

func TestRecordFullPaymentMarksPaid(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	if _, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("60.00"),
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("40.00"),
	})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if res.Status != "paid" {
		t.Fatalf("status = %s, want paid", res.Status)
	}
	if !res.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", res.Balance)
	}
}

func TestRecordOverpaymentRejected(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	if _, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("70.00"),
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}

	_, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("50.00"),
	})
	if !errors.Is(err, domain.ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	var over *domain.OverpaymentError
	if !errors.As(err, &over) {
		t.Fatalf("expected *OverpaymentError, got %T", err)
	}
	if got := over.MaxPayment.StringFixed(2); got != "30.00" {
		t.Fatalf("max payment = %s, want 30.00", got)
	}
	if got := over.AlreadyPaid.StringFixed(2); got != "70.00" {
		t.Fatalf("already paid = %s, want 70.00", got)
	}

	// The rejected payment must leave the invoice untouched.
	status, paid := invoiceState(t, f.conn, inv.ID)
	if status != "partially_paid" || paid != "70.00" {
		t.Fatalf("invoice = %s/%s, want partially_paid/70.00", status, paid)
	}
	var txCount int64
	if err := f.conn.Table("payment_transactions").
		Where("invoice_id = ?", inv.ID).
		Count(&txCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if txCount != 1 {
		t.Fatalf("transactions = %d, want 1", txCount)
	}
}

func TestRecordExactRemainingBalanceAccepted(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	if _, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("70.00"),
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("30.00"),
	})
	if err != nil {
		t.Fatalf("exact balance payment: %v", err)
	}
	if res.Status != "paid" {
		t.Fatalf("status = %s, want paid", res.Status)
	}
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	for _, amount := range []string{"0", "-5.00"} {
		_, err := f.payments.Record(context.Background(), domain.RecordRequest{
			TenantID: 1, InvoiceID: inv.ID, Amount: dec(amount),
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestRecordCancelledInvoiceRefused(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)
	if _, err := f.docs.CancelInvoice(context.Background(), 1, inv.ID); err != nil {
		t.Fatalf("cancel invoice: %v", err)
	}

	_, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("10.00"),
	})
	if !errors.Is(err, documentdomain.ErrDocumentLocked) {
		t.Fatalf("expected ErrDocumentLocked, got %v", err)
	}
}

func TestRecordCrossTenantForbidden(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	_, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 2, InvoiceID: inv.ID, Amount: dec("10.00"),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRecordUnknownInvoice(t *testing.T) {
	f := setupPaymentTest(t)

	_, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: 424242, Amount: dec("10.00"),
	})
	if !errors.Is(err, documentdomain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestDeletePaymentRecomputesProjection(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)
	ctx := context.Background()

	first, err := f.payments.Record(ctx, domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("60.00"),
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, err := f.payments.Record(ctx, domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("40.00"),
	}); err != nil {
		t.Fatalf("second payment: %v", err)
	}

	res, err := f.payments.Delete(ctx, 1, first.Transaction.ID)
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if res.Status != "partially_paid" {
		t.Fatalf("status = %s, want partially_paid", res.Status)
	}
	if got := res.PaidAmount.StringFixed(2); got != "40.00" {
		t.Fatalf("paid = %s, want 40.00", got)
	}

	status, paid := invoiceState(t, f.conn, inv.ID)
	if status != "partially_paid" || paid != "40.00" {
		t.Fatalf("invoice = %s/%s, want partially_paid/40.00", status, paid)
	}
}

func TestDeleteLastPaymentRevertsToSent(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("25.00"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	after, err := f.payments.Delete(context.Background(), 1, res.Transaction.ID)
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if after.Status != "sent" {
		t.Fatalf("status = %s, want sent", after.Status)
	}
	if !after.PaidAmount.IsZero() {
		t.Fatalf("paid = %s, want 0", after.PaidAmount)
	}
}

func TestDeleteLastPaymentOnDraftRevertsToDraft(t *testing.T) {
	f := setupPaymentTest(t)

	detail, err := f.docs.CreateInvoice(context.Background(), documentdomain.CreateInvoiceRequest{
		TenantID:  1,
		ClientID:  7,
		IssueDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Items: []calculator.LineItem{
			{Description: "retainer", Quantity: dec("1"), UnitPrice: dec("100.00")},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: detail.Invoice.ID, Amount: dec("25.00"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	after, err := f.payments.Delete(context.Background(), 1, res.Transaction.ID)
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	// The invoice was never sent, so zeroing the ledger returns it to
	// draft, not sent.
	if after.Status != "draft" {
		t.Fatalf("status = %s, want draft", after.Status)
	}

	status, paid := invoiceState(t, f.conn, detail.Invoice.ID)
	if status != "draft" || paid != "0.00" {
		t.Fatalf("invoice = %s/%s, want draft/0.00", status, paid)
	}
}

func TestDeletePaymentCrossTenantForbidden(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("25.00"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if _, err := f.payments.Delete(context.Background(), 2, res.Transaction.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDeleteUnknownTransaction(t *testing.T) {
	f := setupPaymentTest(t)

	_, err := f.payments.Delete(context.Background(), 1, 987654)
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestListPaymentsOrderedByDate(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)
	ctx := context.Background()

	older := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if _, err := f.payments.Record(ctx, domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("10.00"), PaymentDate: older,
	}); err != nil {
		t.Fatalf("record older: %v", err)
	}
	if _, err := f.payments.Record(ctx, domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("20.00"), PaymentDate: newer,
	}); err != nil {
		t.Fatalf("record newer: %v", err)
	}

	list, err := f.payments.List(ctx, 1, inv.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("payments = %d, want 2", len(list))
	}
	if !list[0].PaymentDate.Equal(newer) {
		t.Fatalf("first payment date = %v, want %v", list[0].PaymentDate, newer)
	}
}

func TestRecordRoundsAmount(t *testing.T) {
	f := setupPaymentTest(t)
	inv := sentInvoice(t, f, 1)

	res, err := f.payments.Record(context.Background(), domain.RecordRequest{
		TenantID: 1, InvoiceID: inv.ID, Amount: dec("10.005"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if got := res.Transaction.Amount.StringFixed(2); got != "10.01" {
		t.Fatalf("amount = %s, want 10.01", got)
	}
}
