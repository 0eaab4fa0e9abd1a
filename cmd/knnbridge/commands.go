package main

import (
	"context"
	"errors"
	"flag"
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/hupe1980/knnbridge"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var errMissingIndex = errors.New("-index is required")

func runBuild(ctx context.Context, cfg *Config, reg prometheus.Registerer, args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	in := fs.String("in", "-", "JSON-lines input of {\"id\",\"vector\"} records")
	index := fs.String("index", "", "persist location (path, file://, mem://, s3://, minio://)")
	space := fs.String("space", "l2", "space type")
	var params paramList
	fs.Var(&params, "param", "build parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index == "" {
		return errMissingIndex
	}

	b, err := newBridge(cfg, reg)
	if err != nil {
		return err
	}
	defer b.Close()

	r, err := openInput(*in, stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	var batch *knnbridge.Batch
	defer func() { batch.Free() }()

	err = readChunks(r, cfg.BatchSize, func(ids []int64, vectors [][]float32) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := b.TransferVectors(batch, ids, vectors)
		if err != nil {
			return err
		}
		batch = next
		return nil
	})
	if err != nil {
		return err
	}
	if batch == nil {
		if batch, err = b.TransferVectors(nil, nil, nil); err != nil {
			return err
		}
	}

	return b.BuildFromBatch(ctx, batch, *index, params, *space)
}

func runQuery(ctx context.Context, cfg *Config, reg prometheus.Registerer, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	in := fs.String("in", "-", "JSON-lines query vectors")
	index := fs.String("index", "", "persist location")
	space := fs.String("space", "l2", "space type")
	k := fs.Int("k", 10, "number of neighbors")
	var params paramList
	fs.Var(&params, "param", "query parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index == "" {
		return errMissingIndex
	}

	r, err := openInput(*in, stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	queries, err := readQueries(r)
	if err != nil {
		return err
	}

	b, err := newBridge(cfg, reg)
	if err != nil {
		return err
	}
	defer b.Close()

	h, err := b.LoadIndex(ctx, *index, params, *space)
	if err != nil {
		return err
	}
	defer b.Destroy(h)

	results := make([]queryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.QueryWorkers)

	for i, q := range queries {
		g.Go(func() error {
			res, err := b.Query(gctx, h, q, *k)
			if err != nil {
				return err
			}
			out := queryResult{Query: i, Neighbors: make([]neighbor, len(res))}
			for j, n := range res {
				out.Neighbors[j] = neighbor{ID: n.ID, Distance: n.Distance}
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writeJSONLines(stdout, results)
}

func runInfo(ctx context.Context, cfg *Config, reg prometheus.Registerer, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	index := fs.String("index", "", "persist location")
	space := fs.String("space", "l2", "space type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index == "" {
		return errMissingIndex
	}

	b, err := newBridge(cfg, reg)
	if err != nil {
		return err
	}
	defer b.Close()

	h, err := b.LoadIndex(ctx, *index, nil, *space)
	if err != nil {
		return err
	}
	defer b.Destroy(h)

	stats, err := b.Stats(h)
	if err != nil {
		return err
	}
	return gojson.NewEncoder(stdout).Encode(stats)
}

func runRemove(ctx context.Context, cfg *Config, reg prometheus.Registerer, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	index := fs.String("index", "", "persist location")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *index == "" {
		return errMissingIndex
	}

	b, err := newBridge(cfg, reg)
	if err != nil {
		return err
	}
	defer b.Close()

	return b.DeleteIndex(ctx, *index)
}
