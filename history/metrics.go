package history

import "github.com/prometheus/client_golang/prometheus"

type metricsProvider struct {
	appends       prometheus.Counter
	appendedBytes prometheus.Counter
	evictedBytes  prometheus.Counter
	resets        prometheus.Counter
	retainedBytes prometheus.Gauge
}

func newMetricsProvider(registry *prometheus.Registry) *metricsProvider {
	if registry == nil {
		return nil
	}

	provider := &metricsProvider{
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_appends_total",
			Help: "Total number of append operations",
		}),
		appendedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_appended_bytes_total",
			Help: "Total number of bytes appended to the log",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_evicted_bytes_total",
			Help: "Total number of bytes evicted to respect the capacity cap",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_resets_total",
			Help: "Total number of log resets",
		}),
		retainedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "history_retained_bytes",
			Help: "Number of bytes currently retained in the log",
		}),
	}

	registry.MustRegister(
		provider.appends,
		provider.appendedBytes,
		provider.evictedBytes,
		provider.resets,
		provider.retainedBytes,
	)

	return provider
}

func (p *metricsProvider) ObserveAppend(appended, evicted int) {
	if p == nil {
		return
	}
	p.appends.Inc()
	p.appendedBytes.Add(float64(appended))
	if evicted > 0 {
		p.evictedBytes.Add(float64(evicted))
	}
}

func (p *metricsProvider) ObserveReset() {
	if p != nil {
		p.resets.Inc()
	}
}

func (p *metricsProvider) SetRetained(n int) {
	if p != nil {
		p.retainedBytes.Set(float64(n))
	}
}
