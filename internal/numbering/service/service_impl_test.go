package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/migration"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	tenantservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/service"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func setupNumberingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:numbering_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newAllocator(t *testing.T, conn *gorm.DB) domain.Allocator {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	tenants := tenantservice.NewService(tenantservice.Params{DB: conn, Log: zap.NewNop()})
	return NewService(Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		Tenants: tenants,
	})
}

func allocate(t *testing.T, conn *gorm.DB, alloc domain.Allocator, tenantID snowflake.ID, kind domain.DocumentKind) string {
	t.Helper()
	var number string
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = alloc.Allocate(context.Background(), tx, tenantID, kind)
		return err
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return number
}

func TestAllocateSequential(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	want := []string{"INV1000", "INV1001", "INV1002"}
	for _, expected := range want {
		if got := allocate(t, conn, alloc, 7, domain.KindInvoice); got != expected {
			t.Fatalf("allocated %s, want %s", got, expected)
		}
	}
}

func TestAllocateKindsAreIndependent(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	if got := allocate(t, conn, alloc, 7, domain.KindInvoice); got != "INV1000" {
		t.Fatalf("invoice number = %s, want INV1000", got)
	}
	if got := allocate(t, conn, alloc, 7, domain.KindEstimate); got != "EST1000" {
		t.Fatalf("estimate number = %s, want EST1000", got)
	}
	if got := allocate(t, conn, alloc, 7, domain.KindEstimate); got != "EST1001" {
		t.Fatalf("estimate number = %s, want EST1001", got)
	}
}

func TestAllocateTenantsAreIsolated(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	if got := allocate(t, conn, alloc, 1, domain.KindInvoice); got != "INV1000" {
		t.Fatalf("tenant 1 number = %s, want INV1000", got)
	}
	if got := allocate(t, conn, alloc, 2, domain.KindInvoice); got != "INV1000" {
		t.Fatalf("tenant 2 number = %s, want INV1000", got)
	}
}

func TestAllocateRespectsCustomSettings(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	tenants := tenantservice.NewService(tenantservice.Params{DB: conn, Log: zap.NewNop()})
	prefix := "ACME-"
	start := int64(5000)
	if _, err := tenants.Update(context.Background(), tenantdomain.UpdateRequest{
		TenantID:              9,
		InvoicePrefix:         &prefix,
		InvoiceStartingNumber: &start,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if got := allocate(t, conn, alloc, 9, domain.KindInvoice); got != "ACME-5000" {
		t.Fatalf("number = %s, want ACME-5000", got)
	}
}

func TestAllocatePrefixChangeStartsFreshSequence(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	if got := allocate(t, conn, alloc, 4, domain.KindInvoice); got != "INV1000" {
		t.Fatalf("number = %s, want INV1000", got)
	}

	tenants := tenantservice.NewService(tenantservice.Params{DB: conn, Log: zap.NewNop()})
	prefix := "NEW"
	if _, err := tenants.Update(context.Background(), tenantdomain.UpdateRequest{
		TenantID:      4,
		InvoicePrefix: &prefix,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if got := allocate(t, conn, alloc, 4, domain.KindInvoice); got != "NEW1000" {
		t.Fatalf("number = %s, want NEW1000", got)
	}
}

func TestAllocateSeedsAboveExistingDocuments(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	// A document allocated before the counter row existed.
	if err := conn.Exec(
		`INSERT INTO invoices (id, tenant_id, client_id, document_number, status, issue_date, due_date)
		 VALUES (1, 5, 2, 'INV1005', 'sent', '2024-01-01', '2024-02-01')`,
	).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	if got := allocate(t, conn, alloc, 5, domain.KindInvoice); got != "INV1006" {
		t.Fatalf("number = %s, want INV1006", got)
	}
}

func TestAllocateWidensPastFourDigits(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	if err := conn.Exec(
		`INSERT INTO invoices (id, tenant_id, client_id, document_number, status, issue_date, due_date)
		 VALUES (2, 6, 2, 'INV9999', 'sent', '2024-01-01', '2024-02-01')`,
	).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	if got := allocate(t, conn, alloc, 6, domain.KindInvoice); got != "INV10000" {
		t.Fatalf("number = %s, want INV10000", got)
	}
}

func TestAllocateLostFenceReturnsConflict(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	// Seed the counter.
	if got := allocate(t, conn, alloc, 8, domain.KindInvoice); got != "INV1000" {
		t.Fatalf("number = %s, want INV1000", got)
	}

	// A racing allocation advanced the counter between this caller's
	// read and its fenced update: replay the fenced update against a
	// stale observed value.
	result := conn.Exec(
		`UPDATE numbering_counters
		 SET next_value = ?
		 WHERE tenant_id = ? AND kind = ? AND prefix = ? AND next_value = ?`,
		1002, 8, domain.KindInvoice, "INV", 1000,
	)
	if result.Error != nil {
		t.Fatalf("fenced update: %v", result.Error)
	}
	if result.RowsAffected != 0 {
		t.Fatal("stale fence should not match any row")
	}

	// The live value still advances normally.
	if got := allocate(t, conn, alloc, 8, domain.KindInvoice); got != "INV1001" {
		t.Fatalf("number = %s, want INV1001", got)
	}
}

func TestAllocateParallelCallersGetDistinctNumbers(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	// One pooled connection keeps sqlite from failing writers with lock
	// errors; contention then surfaces only as the allocation fence.
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < callers*4; attempt++ {
				var number string
				txErr := conn.Transaction(func(tx *gorm.DB) error {
					var err error
					number, err = alloc.Allocate(context.Background(), tx, 3, domain.KindInvoice)
					return err
				})
				if errors.Is(txErr, domain.ErrAllocationConflict) {
					continue
				}
				if txErr != nil {
					t.Errorf("allocate: %v", txErr)
					return
				}
				mu.Lock()
				numbers[number] = true
				mu.Unlock()
				return
			}
			t.Error("allocation never succeeded")
		}()
	}
	wg.Wait()

	if len(numbers) != callers {
		t.Fatalf("distinct numbers = %d, want %d: %v", len(numbers), callers, numbers)
	}
	// Dense: exactly INV1000 through INV1007, no gaps.
	for n := 1000; n < 1000+callers; n++ {
		want := fmt.Sprintf("INV%d", n)
		if !numbers[want] {
			t.Fatalf("missing %s in %v", want, numbers)
		}
	}
}

func TestFormatZeroPads(t *testing.T) {
	if got := domain.Format("INV", 1000); got != "INV1000" {
		t.Fatalf("Format = %s", got)
	}
	if got := domain.Format("EST", 7); got != "EST0007" {
		t.Fatalf("Format = %s", got)
	}
	if got := domain.Format("INV", 123456); got != "INV123456" {
		t.Fatalf("Format = %s", got)
	}
}

func TestAllocateInvalidInput(t *testing.T) {
	conn := setupNumberingTestDB(t)
	alloc := newAllocator(t, conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.Allocate(context.Background(), tx, 0, domain.KindInvoice)
		return err
	})
	if err != domain.ErrInvalidTenant {
		t.Fatalf("expected ErrInvalidTenant, got %v", err)
	}

	err = conn.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.Allocate(context.Background(), tx, 1, domain.DocumentKind("receipt"))
		return err
	})
	if err != domain.ErrInvalidKind {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}
