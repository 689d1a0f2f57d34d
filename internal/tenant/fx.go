package tenant

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(service.NewService),
)
