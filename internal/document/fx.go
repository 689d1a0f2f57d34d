package document

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(service.NewService),
)
