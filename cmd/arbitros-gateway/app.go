package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"arbitros/internal/assets"
	"arbitros/internal/blob"
	"arbitros/internal/config"
	"arbitros/internal/core"
	"arbitros/internal/lock"
	"arbitros/internal/metrics"
	"arbitros/internal/records"
)

// app is the wired gateway.
type app struct {
	cfg         config.Config
	logger      *slog.Logger
	images      *assets.Images
	records     *records.Client
	locker      lock.Locker
	coordinator *core.Coordinator
	registry    *prometheus.Registry
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg.Log, logOut)

	store, err := blob.Open(ctx, blob.Options{
		Driver: cfg.Blob.Driver,
		Bucket: cfg.Blob.Bucket,
		S3: blob.S3Config{
			Region:          cfg.Blob.Region,
			Bucket:          cfg.Blob.Bucket,
			Endpoint:        cfg.Blob.Endpoint,
			AccessKeyID:     cfg.Blob.AccessKeyID,
			SecretAccessKey: cfg.Blob.SecretAccessKey,
			SessionToken:    cfg.Blob.SessionToken,
			PathStyle:       cfg.Blob.PathStyle,
			Timeout:         cfg.Blob.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	images := assets.New(store, cfg.Blob.Region, assets.WithPublicBaseURL(cfg.Blob.PublicBaseURL))

	client, err := records.New(cfg.UpstreamURL, records.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		return nil, err
	}

	locker, err := lock.Open(ctx, lock.Options{
		Driver:      cfg.Lock.Driver,
		SQLitePath:  cfg.Lock.SQLitePath,
		PostgresDSN: cfg.Lock.PostgresDSN,
		TTL:         cfg.Lock.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}

	registry := prometheus.NewRegistry()
	observer, err := metrics.New(metrics.DefaultNamespace, registry)
	if err != nil {
		_ = locker.Close()
		return nil, err
	}

	coord := core.NewCoordinator(images, client,
		core.WithLogger(logger.With("component", "coordinator")),
		core.WithMetrics(observer),
		core.WithLocker(locker),
		core.WithOperationTimeout(cfg.OperationTimeout),
	)
	logger.Debug("gateway wired",
		"blob_driver", store.Driver(),
		"bucket", store.Bucket(),
		"upstream", client.BaseURL(),
		"lock_driver", cfg.Lock.Driver,
	)
	return &app{
		cfg:         cfg,
		logger:      logger,
		images:      images,
		records:     client,
		locker:      locker,
		coordinator: coord,
		registry:    registry,
	}, nil
}

func (a *app) Close() error {
	return a.locker.Close()
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
