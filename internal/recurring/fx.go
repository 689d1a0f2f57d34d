package recurring

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring.service",
	fx.Provide(service.NewService),
)
