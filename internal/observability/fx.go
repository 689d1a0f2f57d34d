package observability

import (
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Module provides the metrics registry and instruments.
var Module = fx.Module("observability",
	fx.Provide(newRegistry),
	fx.Provide(func(reg *prometheus.Registry) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(reg)
	}),
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
