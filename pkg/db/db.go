package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. Postgres is the runtime
// driver; sqlite exists for local development and tests.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	log.Named("db").Info("database connected", zap.String("driver", driver))
	return conn, nil
}

// SupportsRowLocks reports whether the connected dialect understands
// SELECT ... FOR UPDATE SKIP LOCKED. Sqlite serializes writers instead.
func SupportsRowLocks(conn *gorm.DB) bool {
	return conn.Dialector.Name() == "postgres"
}

var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}),
)
