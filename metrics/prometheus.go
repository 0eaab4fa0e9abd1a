// Package metrics exports bridge metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/hupe1980/knnbridge"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// PrometheusCollector implements knnbridge.MetricsCollector on top of
// Prometheus collectors.
type PrometheusCollector struct {
	opLatency   *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	records     *prometheus.CounterVec
	results     prometheus.Histogram
	liveHandles prometheus.Gauge
}

var _ knnbridge.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector and registers it with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(namespace string, reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of bridge operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed bridge operations by error kind",
		}, []string{"op", "kind"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Vectors handed to the native layer",
		}, []string{"op"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of neighbors returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_handles",
			Help:      "Loaded indexes that have not been destroyed",
		}),
	}

	for _, col := range []prometheus.Collector{c.opLatency, c.errors, c.records, c.results, c.liveHandles} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

func (c *PrometheusCollector) observe(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
	if err != nil {
		c.errors.WithLabelValues(op, knnbridge.KindOf(err).String()).Inc()
	}
}

// RecordBuild implements knnbridge.MetricsCollector.
func (c *PrometheusCollector) RecordBuild(count int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.records.WithLabelValues("build").Add(float64(count))
	}
}

// RecordLoad implements knnbridge.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(d time.Duration, err error) {
	c.observe("load", d, err)
	if err == nil {
		c.liveHandles.Inc()
	}
}

// RecordQuery implements knnbridge.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(_ int, results int, d time.Duration, err error) {
	c.observe("query", d, err)
	if err == nil {
		c.results.Observe(float64(results))
	}
}

// RecordDestroy implements knnbridge.MetricsCollector.
func (c *PrometheusCollector) RecordDestroy(err error) {
	c.liveHandles.Dec()
	if err != nil {
		c.errors.WithLabelValues("destroy", knnbridge.KindOf(err).String()).Inc()
	}
}

// RecordTransfer implements knnbridge.MetricsCollector.
func (c *PrometheusCollector) RecordTransfer(count int, err error) {
	if err != nil {
		c.errors.WithLabelValues("transfer", knnbridge.KindOf(err).String()).Inc()
		return
	}
	c.records.WithLabelValues("transfer").Add(float64(count))
}
