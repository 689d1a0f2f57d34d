package conversion

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/conversion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversion.service",
	fx.Provide(service.NewService),
)
