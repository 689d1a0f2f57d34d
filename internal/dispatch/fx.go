package dispatch

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dispatch",
	fx.Provide(func(log *zap.Logger) Dispatcher {
		return NewLogDispatcher(log)
	}),
)
