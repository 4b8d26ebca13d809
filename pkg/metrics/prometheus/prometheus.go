// Package prometheus implements the metrics client interface on top of a
// dedicated prometheus registry. Metric and label names are declared up
// front in metricsTypes; emitting an undeclared metric or label is an error
// rather than a silent new time series.
package prometheus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/interlay/interbtc-indexer/pkg/metrics/metricsTypes"
	"github.com/interlay/interbtc-indexer/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusMetricsConfig struct {
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig
}

type PrometheusMetricsClient struct {
	registry *prometheus.Registry
	config   *PrometheusMetricsConfig
	logger   *zap.Logger

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusMetricsClient(cfg *PrometheusMetricsConfig, l *zap.Logger) (*PrometheusMetricsClient, error) {
	client := &PrometheusMetricsClient{
		registry:   prometheus.NewRegistry(),
		config:     cfg,
		logger:     l,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, mc := range cfg.Metrics[metricsTypes.MetricsType_Incr] {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: sanitizeMetricName(mc.Name),
		}, sanitizeLabelNames(mc.Labels))
		if err := client.registry.Register(vec); err != nil {
			return nil, err
		}
		client.counters[mc.Name] = vec
	}
	for _, mc := range cfg.Metrics[metricsTypes.MetricsType_Gauge] {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: sanitizeMetricName(mc.Name),
		}, sanitizeLabelNames(mc.Labels))
		if err := client.registry.Register(vec); err != nil {
			return nil, err
		}
		client.gauges[mc.Name] = vec
	}
	for _, mc := range cfg.Metrics[metricsTypes.MetricsType_Timing] {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    sanitizeMetricName(mc.Name) + "_ms",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}, sanitizeLabelNames(mc.Labels))
		if err := client.registry.Register(vec); err != nil {
			return nil, err
		}
		client.histograms[mc.Name] = vec
	}

	return client, nil
}

// Handler serves the registry for scraping.
func (p *PrometheusMetricsClient) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func sanitizeMetricName(name string) string {
	sanitized := ""
	for _, c := range name {
		if c == '.' || c == '-' {
			sanitized += "_"
		} else {
			sanitized += string(c)
		}
	}
	return sanitized
}

func sanitizeLabelNames(labels []string) []string {
	sanitized := make([]string, 0, len(labels))
	for _, label := range labels {
		sanitized = append(sanitized, utils.SnakeCase(label))
	}
	return sanitized
}

func (p *PrometheusMetricsClient) findMetricConfig(metricsType metricsTypes.MetricsType, name string) *metricsTypes.MetricsTypeConfig {
	for _, mc := range p.config.Metrics[metricsType] {
		if mc.Name == name {
			return &mc
		}
	}
	return nil
}

// hasUnexpectedLabels returns an error when a label is provided that the
// metric was not declared with. A subset of the declared labels is allowed.
func (p *PrometheusMetricsClient) hasUnexpectedLabels(metricsType metricsTypes.MetricsType, name string, labels []metricsTypes.MetricsLabel) error {
	mc := p.findMetricConfig(metricsType, name)
	if mc == nil {
		return fmt.Errorf("metric %s of type %s is not configured", name, metricsType)
	}
	for _, label := range labels {
		found := false
		for _, expected := range mc.Labels {
			if expected == label.Name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unexpected label %s for metric %s", label.Name, name)
		}
	}
	return nil
}

// labelValues fills in every declared label, using the empty string for
// labels the caller omitted.
func (p *PrometheusMetricsClient) labelValues(metricsType metricsTypes.MetricsType, name string, labels []metricsTypes.MetricsLabel) prometheus.Labels {
	mc := p.findMetricConfig(metricsType, name)
	values := prometheus.Labels{}
	for _, declared := range mc.Labels {
		value := ""
		for _, label := range labels {
			if label.Name == declared {
				value = label.Value
				break
			}
		}
		values[utils.SnakeCase(declared)] = value
	}
	return values
}

func (p *PrometheusMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	if err := p.hasUnexpectedLabels(metricsTypes.MetricsType_Incr, name, labels); err != nil {
		return err
	}
	p.counters[name].With(p.labelValues(metricsTypes.MetricsType_Incr, name, labels)).Add(value)
	return nil
}

func (p *PrometheusMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	if err := p.hasUnexpectedLabels(metricsTypes.MetricsType_Gauge, name, labels); err != nil {
		return err
	}
	p.gauges[name].With(p.labelValues(metricsTypes.MetricsType_Gauge, name, labels)).Set(value)
	return nil
}

func (p *PrometheusMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	if err := p.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, name, labels); err != nil {
		return err
	}
	p.histograms[name].With(p.labelValues(metricsTypes.MetricsType_Timing, name, labels)).Observe(float64(value.Milliseconds()))
	return nil
}

func (p *PrometheusMetricsClient) Flush() {}
