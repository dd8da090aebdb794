package testimplementations

import "github.com/prometheus/client_golang/prometheus"

// NoopMetricsRegisterer accepts every collector without exporting it.
type NoopMetricsRegisterer struct{}

var _ prometheus.Registerer = NoopMetricsRegisterer{}

func (NoopMetricsRegisterer) Register(prometheus.Collector) error {
	return nil
}

func (NoopMetricsRegisterer) MustRegister(...prometheus.Collector) {}

func (NoopMetricsRegisterer) Unregister(prometheus.Collector) bool {
	return true
}
