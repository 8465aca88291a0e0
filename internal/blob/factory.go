package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a driver for Open.
type Options struct {
	Driver Driver
	Bucket string
	S3     S3Config
}

// Open selects a blob.Store implementation. The S3 driver is the default;
// memory keeps everything in-process and is meant for tests and local runs.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverS3
	}
	switch driver {
	case DriverS3:
		cfg := opts.S3
		if cfg.Bucket == "" {
			cfg.Bucket = opts.Bucket
		}
		return NewS3(ctx, cfg)
	case DriverMemory:
		return NewMemory(opts.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
