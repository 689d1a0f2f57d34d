package numbering

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/numbering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("numbering.service",
	fx.Provide(service.NewService),
)
