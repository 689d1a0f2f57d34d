package main

import (
	"context"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/clock"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/dispatch"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/document"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/events"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/logger"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/migration"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/observability"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring"
	recurringworker "github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/worker"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/seed"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/server"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant"
	"github.com/Mr-IR0k-oo1/Billio-sub000/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		fx.Invoke(prepareDatabase),

		audit.Module,
		tenant.Module,
		numbering.Module,
		events.Module,
		dispatch.Module,
		document.Module,
		payment.Module,
		conversion.Module,
		recurring.Module,
		recurringworker.Module,

		server.Module,
	)
	app.Run()
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Snowflake.Node)
}

func prepareDatabase(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if err := migration.RunMigrations(conn); err != nil {
		return err
	}
	return seed.EnsureDefaultTenant(context.Background(), conn, cfg, log)
}
