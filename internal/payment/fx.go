package payment

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(service.NewService),
)
