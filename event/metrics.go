package event

import "github.com/prometheus/client_golang/prometheus"

type busMetricsProvider struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func newBusMetricsProvider(registry *prometheus.Registry) *busMetricsProvider {
	if registry == nil {
		return nil
	}

	provider := &busMetricsProvider{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbus_events_published_total",
				Help: "Total number of events published by event type",
			},
			[]string{"event_type"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbus_events_delivered_total",
				Help: "Total number of events delivered by event type",
			},
			[]string{"event_type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbus_events_dropped_total",
				Help: "Total number of events dropped due to full channel buffers",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		provider.published,
		provider.delivered,
		provider.dropped,
	)

	return provider
}

func (p *busMetricsProvider) IncrementPublished(eventType string) {
	if p != nil {
		p.published.WithLabelValues(eventType).Inc()
	}
}

func (p *busMetricsProvider) IncrementDelivered(eventType string) {
	if p != nil {
		p.delivered.WithLabelValues(eventType).Inc()
	}
}

func (p *busMetricsProvider) IncrementDropped(eventType string) {
	if p != nil {
		p.dropped.WithLabelValues(eventType).Inc()
	}
}
