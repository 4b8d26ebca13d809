// Package metrics fans metric emissions out to the configured clients. A
// nil MetricsSink is valid and drops everything, so callers never need to
// guard their emissions.
package metrics

import (
	"time"

	"github.com/interlay/interbtc-indexer/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

type MetricsSink struct {
	logger  *zap.Logger
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(l *zap.Logger, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	return &MetricsSink{
		logger:  l,
		clients: clients,
	}, nil
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	if ms == nil {
		return nil
	}
	for _, client := range ms.clients {
		if err := client.Incr(name, labels, value); err != nil {
			ms.logger.Sugar().Warnw("Failed to increment metric",
				zap.Error(err),
				zap.String("name", name),
			)
		}
	}
	return nil
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	if ms == nil {
		return nil
	}
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, labels); err != nil {
			ms.logger.Sugar().Warnw("Failed to set gauge",
				zap.Error(err),
				zap.String("name", name),
			)
		}
	}
	return nil
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	if ms == nil {
		return nil
	}
	for _, client := range ms.clients {
		if err := client.Timing(name, value, labels); err != nil {
			ms.logger.Sugar().Warnw("Failed to record timing",
				zap.Error(err),
				zap.String("name", name),
			)
		}
	}
	return nil
}

func (ms *MetricsSink) Flush() {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		client.Flush()
	}
}
