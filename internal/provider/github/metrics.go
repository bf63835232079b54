package github

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "plannersync"

const processedEventsMetricName = "processed_webhook_events_total"

const codeLabel = "code"

type metricCollector struct {
	processedEvents *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		processedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedEventsMetricName,
				Help:      "count of processed github webhook requests by response code",
			},
			[]string{codeLabel},
		),
	}
}

func (m *metricCollector) ProcessedEventsInc(code responseCode) {
	m.processedEvents.WithLabelValues(string(code)).Inc()
}
