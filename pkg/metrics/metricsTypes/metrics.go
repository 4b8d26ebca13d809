package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_BlockProcessed       = "blockProcessed"
	Metric_Incr_EventDecoded         = "indexer.eventDecoded"
	Metric_Incr_EventUnknownVersion  = "indexer.eventUnknownVersion"
	Metric_Incr_RequestExpired       = "indexer.requestExpired"
	Metric_Incr_HttpRequest          = "rpc.http.request"

	Metric_Gauge_CurrentBlockHeight = "currentBlockHeight"
	Metric_Gauge_ActiveBlockHeight  = "activeBlockHeight"
	Metric_Gauge_RelayedBtcHeight   = "relayedBtcHeight"

	Metric_Timing_BlockProcessDuration = "block.process.duration"
	Metric_Timing_HttpDuration         = "rpc.http.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_BlockProcessed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_EventDecoded,
			Labels: []string{
				"event_name",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_EventUnknownVersion,
			Labels: []string{
				"event_name",
				"spec_version",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_RequestExpired,
			Labels: []string{
				"request_type",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_CurrentBlockHeight,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_ActiveBlockHeight,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_RelayedBtcHeight,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_BlockProcessDuration,
			Labels: []string{
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
	},
}
