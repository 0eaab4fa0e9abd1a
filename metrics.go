package knnbridge

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metrics provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each build, with the number of records
	// handed to the native layer.
	RecordBuild(count int, duration time.Duration, err error)

	// RecordLoad is called after each load. A nil err means a new live
	// handle exists.
	RecordLoad(duration time.Duration, err error)

	// RecordQuery is called after each query with the requested k and the
	// number of results returned.
	RecordQuery(k, results int, duration time.Duration, err error)

	// RecordDestroy is called when a live handle is destroyed.
	RecordDestroy(err error)

	// RecordTransfer is called after each vector transfer into a batch.
	RecordTransfer(count int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)            {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDestroy(error)                        {}
func (NoopMetricsCollector) RecordTransfer(int, error)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildRecords    atomic.Int64
	BuildTotalNanos atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryResults    atomic.Int64
	QueryTotalNanos atomic.Int64
	DestroyCount    atomic.Int64
	TransferCount   atomic.Int64
	TransferErrors  atomic.Int64
	TransferRecords atomic.Int64
	LiveHandles     atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(count int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildRecords.Add(int64(count))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LiveHandles.Add(1)
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ int, results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(results))
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(error) {
	b.DestroyCount.Add(1)
	b.LiveHandles.Add(-1)
}

// RecordTransfer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransfer(count int, err error) {
	b.TransferCount.Add(1)
	if err != nil {
		b.TransferErrors.Add(1)
		return
	}
	b.TransferRecords.Add(int64(count))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildRecords:    b.BuildRecords.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		LoadCount:       b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryResults:    b.QueryResults.Load(),
		QueryAvgNanos:   avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		DestroyCount:    b.DestroyCount.Load(),
		TransferCount:   b.TransferCount.Load(),
		TransferErrors:  b.TransferErrors.Load(),
		TransferRecords: b.TransferRecords.Load(),
		LiveHandles:     b.LiveHandles.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildRecords    int64
	BuildAvgNanos   int64
	LoadCount       int64
	LoadErrors      int64
	QueryCount      int64
	QueryErrors     int64
	QueryResults    int64
	QueryAvgNanos   int64
	DestroyCount    int64
	TransferCount   int64
	TransferErrors  int64
	TransferRecords int64
	LiveHandles     int64
}
