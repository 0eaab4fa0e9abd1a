package knnbridge

import (
	"github.com/hupe1980/knnbridge/blobstore"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resolver         blobstore.Resolver
	memoryLimit      int64
	ioRateLimit      int64
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
//
// Example:
//
//	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
//	b := knnbridge.New(knnbridge.WithMetricsCollector(collector))
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithStoreResolver sets how persist locations are mapped to blob stores.
// The default resolver accepts local paths, file:// and mem:// locations.
func WithStoreResolver(r blobstore.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithMemoryLimit caps the native memory the bridge may hold at once across
// packed buffers and live indexes. Requests beyond the cap fail with
// ErrResourceExhausted. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIORateLimit throttles index persistence and loading to bytesPerSec.
// Zero means unlimited.
func WithIORateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioRateLimit = bytesPerSec
	}
}
