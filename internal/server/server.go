package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
	conversiondomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/domain"
	documentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/domain"
	obslogger "github.com/Mr-IR0k-oo1/Billio-sub000/internal/observability/logger"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/observability/metrics"
	paymentdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/domain"
	recurringdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/domain"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Clock        clock.Clock
	Tenants      tenantdomain.Service
	Documents    documentdomain.Service
	Payments     paymentdomain.Service
	Conversions  conversiondomain.Service
	Recurring    recurringdomain.Service
	AuditSvc     auditdomain.Service
	PromRegistry *prometheus.Registry
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	clock        clock.Clock
	tenantSvc    tenantdomain.Service
	documentSvc  documentdomain.Service
	paymentSvc   paymentdomain.Service
	conversion   conversiondomain.Service
	recurringSvc recurringdomain.Service
	auditSvc     auditdomain.Service
	registry     *prometheus.Registry
	limiter      *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:          p.Config,
		log:          p.Log.Named("server"),
		db:           p.DB,
		clock:        p.Clock,
		tenantSvc:    p.Tenants,
		documentSvc:  p.Documents,
		paymentSvc:   p.Payments,
		conversion:   p.Conversions,
		recurringSvc: p.Recurring,
		auditSvc:     p.AuditSvc,
		registry:     p.PromRegistry,
		limiter:      newRateLimiter(p.Config.HTTP.RateLimitRequests, p.Config.HTTP.RateLimitWindow),
	}
}

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(obslogger.GinMiddleware())
	engine.Use(metrics.GinMiddleware(m))
	return engine
}

// RegisterAPIRoutes mounts every billing endpoint under /api.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	api.Use(s.RateLimit())
	api.Use(s.TenantRequired())

	api.GET("/settings", s.GetSettings)
	api.PUT("/settings", s.UpdateSettings)

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.PUT("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.POST("/invoices/:id/send", s.SendInvoice)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.GET("/invoices/:id/payments", s.ListPayments)
	api.POST("/invoices/:id/payments", s.RecordPayment)

	api.DELETE("/payments/:id", s.DeletePayment)

	api.POST("/estimates", s.CreateEstimate)
	api.GET("/estimates", s.ListEstimates)
	api.GET("/estimates/:id", s.GetEstimate)
	api.PUT("/estimates/:id", s.UpdateEstimate)
	api.DELETE("/estimates/:id", s.DeleteEstimate)
	api.POST("/estimates/:id/send", s.SendEstimate)
	api.POST("/estimates/:id/accept", s.AcceptEstimate)
	api.POST("/estimates/:id/decline", s.DeclineEstimate)
	api.POST("/estimates/:id/convert", s.ConvertEstimate)

	api.POST("/recurring-profiles", s.CreateRecurringProfile)
	api.GET("/recurring-profiles", s.ListRecurringProfiles)
	api.GET("/recurring-profiles/:id", s.GetRecurringProfile)
	api.PUT("/recurring-profiles/:id", s.UpdateRecurringProfile)
	api.POST("/recurring-profiles/:id/run", s.RunRecurringProfile)
	api.POST("/recurring-profiles/:id/pause", s.PauseRecurringProfile)
	api.POST("/recurring-profiles/:id/resume", s.ResumeRecurringProfile)
	api.DELETE("/recurring-profiles/:id", s.DeleteRecurringProfile)

	api.GET("/activity", s.ListActivity)
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener on the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterAPIRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
