package main

import (
	"context"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/knnbridge"
	"github.com/hupe1980/knnbridge/blobstore"
	"github.com/hupe1980/knnbridge/blobstore/minio"
	"github.com/hupe1980/knnbridge/blobstore/s3"
	"github.com/hupe1980/knnbridge/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func newLogger(cfg *Config) *knnbridge.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return knnbridge.NewJSONLogger(level)
	}
	return knnbridge.NewTextLogger(level)
}

// lazyS3 defers loading AWS credentials until an s3:// location is used.
func lazyS3(region string) blobstore.Factory {
	var (
		once    sync.Once
		factory blobstore.Factory
		initErr error
	)
	return func(ctx context.Context, u *url.URL) (blobstore.BlobStore, string, error) {
		once.Do(func() {
			var opts []func(*config.LoadOptions) error
			if region != "" {
				opts = append(opts, config.WithRegion(region))
			}
			awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				initErr = err
				return
			}
			factory = s3.Factory(awss3.NewFromConfig(awsCfg))
		})
		if initErr != nil {
			return nil, "", initErr
		}
		return factory(ctx, u)
	}
}

func newResolver(cfg *Config) (*blobstore.SchemeResolver, error) {
	r := blobstore.NewResolver()
	r.Register("s3", lazyS3(cfg.S3Region))

	if cfg.MinioEndpoint != "" {
		client, err := minio.NewClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioSecure)
		if err != nil {
			return nil, err
		}
		r.Register("minio", minio.Factory(client))
	}
	return r, nil
}

func newBridge(cfg *Config, reg prometheus.Registerer) (*knnbridge.Bridge, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	opts := []knnbridge.Option{
		knnbridge.WithLogger(newLogger(cfg)),
		knnbridge.WithStoreResolver(resolver),
		knnbridge.WithMemoryLimit(cfg.MemoryLimit),
		knnbridge.WithIORateLimit(cfg.IORateLimit),
	}
	if reg != nil {
		mc, err := metrics.NewPrometheusCollector("knnbridge", reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, knnbridge.WithMetricsCollector(mc))
	}

	knnbridge.InitLibrary()
	return knnbridge.New(opts...), nil
}
