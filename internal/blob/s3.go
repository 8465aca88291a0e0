package blob

import (
	"context"

	infraS3 "arbitros/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// S3Mock re-exports the fake S3 endpoint used by NewMockS3ForTests.
type S3Mock = infraS3.Mock

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests exposes the fake-transport S3 store for cross-package tests.
func NewMockS3ForTests(bucket string) (Store, *S3Mock) { return infraS3.NewMockForTests(bucket) }
