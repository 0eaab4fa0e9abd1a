package knnbridge

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/knnbridge/internal/native"
	"github.com/hupe1980/knnbridge/internal/packer"
)

// Batch accumulates packed vectors off-heap across several transfers, for
// callers that cannot hand over a whole build at once. A Batch must be
// freed with Free. It is safe for concurrent use.
type Batch struct {
	_ noCopy

	mu    sync.Mutex
	buf   *packer.Buffer
	owner *Bridge
}

// Len returns the number of transferred records.
func (bt *Batch) Len() int {
	if bt == nil {
		return 0
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.buf == nil {
		return 0
	}
	return bt.buf.Len()
}

// Dim returns the record dimension, or 0 while the batch is empty.
func (bt *Batch) Dim() int {
	if bt == nil {
		return 0
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.buf == nil {
		return 0
	}
	return bt.buf.Dim()
}

// Free releases the packed records. Freeing twice is a no-op.
func (bt *Batch) Free() {
	if bt == nil {
		return
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.buf != nil {
		bt.buf.Release()
		bt.buf = nil
	}
}

// TransferVectors appends ids and vectors to batch, creating a new batch
// when batch is nil. Every transfer must use the dimension of the first.
// A failed transfer leaves an existing batch unchanged.
func (b *Bridge) TransferVectors(batch *Batch, ids []int64, vectors [][]float32) (*Batch, error) {
	ctx := context.Background()
	total := 0

	err := guard(opTransfer, func() error {
		if err := ready(ctx); err != nil {
			return err
		}
		if len(ids) != len(vectors) {
			return ErrLengthMismatch
		}

		if batch == nil {
			nb := &Batch{buf: packer.New(b.rc), owner: b}
			if err := nb.buf.Append(Records(ids, vectors)); err != nil {
				nb.Free()
				return err
			}
			batch = nb
			total = nb.buf.Len()
			return nil
		}

		if batch.owner != b {
			return ErrInvalidBatch
		}
		batch.mu.Lock()
		defer batch.mu.Unlock()

		if batch.buf == nil {
			return ErrInvalidBatch
		}
		if err := batch.buf.Append(Records(ids, vectors)); err != nil {
			return err
		}
		total = batch.buf.Len()
		return nil
	})
	if err != nil {
		b.opts.metricsCollector.RecordTransfer(len(ids), err)
		b.opts.logger.LogTransfer(ctx, len(ids), 0, err)
		return nil, err
	}

	b.opts.metricsCollector.RecordTransfer(len(ids), nil)
	b.opts.logger.LogTransfer(ctx, len(ids), total, nil)
	return batch, nil
}

// BuildFromBatch builds an index over the records in batch and persists it
// at persistPath. The batch stays owned by the caller and is not freed.
func (b *Bridge) BuildFromBatch(ctx context.Context, batch *Batch, persistPath string, buildParams []string, spaceType string) error {
	start := time.Now()
	count, dim := 0, 0

	err := guard(opBuildFromBatch, func() error {
		if err := ready(ctx); err != nil {
			return err
		}
		if batch == nil || batch.owner != b {
			return ErrInvalidBatch
		}
		batch.mu.Lock()
		defer batch.mu.Unlock()

		if batch.buf == nil {
			return ErrInvalidBatch
		}
		count, dim = batch.buf.Len(), batch.buf.Dim()

		loc, err := b.locate(ctx, persistPath)
		if err != nil {
			return err
		}

		space, err := native.NewSpace(spaceType)
		if err != nil {
			return err
		}
		defer space.Release()

		return b.createAndSave(ctx, space, batch.buf, loc, buildParams)
	})

	b.opts.metricsCollector.RecordBuild(count, time.Since(start), err)
	b.opts.logger.LogBuild(ctx, persistPath, spaceType, count, dim, err)
	return err
}
