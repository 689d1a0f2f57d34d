package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	auditrepository "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/repository"
	auditservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
	conversionservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/service"
	documentservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/service"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/migration"
	numberingservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/service"
	paymentservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/service"
	recurringservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/service"
	tenantservice "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/service"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	engine *gin.Engine
	conn   *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimit(t, 1000)
}

func newTestServerWithLimit(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
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
	log := zap.NewNop()
	tenants := tenantservice.NewService(tenantservice.Params{DB: conn, Log: log})
	allocator := numberingservice.NewService(numberingservice.Params{
		Log: log, GenID: node, Clock: clk, Tenants: tenants,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Repo: auditrepository.Provide(),
	})
	outbox := events.NewOutbox(conn, node)
	docs := documentservice.NewService(documentservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk,
		Allocator: allocator, Tenants: tenants, AuditSvc: auditSvc, Outbox: outbox,
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, AuditSvc: auditSvc,
	})
	conversions := conversionservice.NewService(conversionservice.Params{
		DB: conn, Log: log, Clock: clk,
		Documents: docs, AuditSvc: auditSvc, Outbox: outbox,
	})
	recurring := recurringservice.NewService(recurringservice.Params{
		DB: conn, Log: log, GenID: node,
		Documents: docs, Tenants: tenants, AuditSvc: auditSvc, Outbox: outbox,
	})

	cfg := config.Config{
		Environment: "test",
		HTTP: config.HTTPConfig{
			RateLimitRequests: rateLimit,
			RateLimitWindow:   time.Minute,
		},
	}
	srv := NewServer(Params{
		Config:       cfg,
		Log:          log,
		DB:           conn,
		Clock:        clk,
		Tenants:      tenants,
		Documents:    docs,
		Payments:     payments,
		Conversions:  conversions,
		Recurring:    recurring,
		AuditSvc:     auditSvc,
		PromRegistry: prometheus.NewRegistry(),
	})

	engine := gin.New()
	srv.RegisterAPIRoutes(engine)
	return &testServer{engine: engine, conn: conn}
}

func (ts *testServer) do(t *testing.T, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Error map[string]any `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error %q: %v", w.Body.String(), err)
	}
	return envelope.Error
}

func invoicePayload() map[string]any {
	return map[string]any{
		"client_id":  "42",
		"issue_date": "2024-06-01",
		"due_date":   "2024-07-01",
		"items": []map[string]any{
			{"description": "support plan", "quantity": "2", "unit_price": "50.00"},
		},
		"discount":      "10",
		"discount_type": "fixed",
		"tax_rate":      "10",
	}
}
