// Package seed provisions minimal bootstrap data for development and
// test environments.
package seed

import (
	"context"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
	tenantdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultTenantID is the tenant provisioned on a fresh development
// database so the API is usable without a signup flow.
const DefaultTenantID = 1

// EnsureDefaultTenant inserts settings for the default tenant when
// bootstrap is enabled. Existing rows are left untouched.
func EnsureDefaultTenant(ctx context.Context, conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.Bootstrap.EnsureDefaultTenant || cfg.IsProduction() {
		return nil
	}

	settings := tenantdomain.DefaultSettings(DefaultTenantID)
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO tenant_settings
		 (tenant_id, invoice_prefix, invoice_starting_number, estimate_prefix, estimate_starting_number, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT (tenant_id) DO NOTHING`,
		settings.TenantID,
		settings.InvoicePrefix,
		settings.InvoiceStartingNumber,
		settings.EstimatePrefix,
		settings.EstimateStartingNumber,
		settings.Currency,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info("default tenant provisioned", zap.Int64("tenant_id", DefaultTenantID))
	}
	return nil
}
