// Package core keeps an arbitro's image object and the record's reference to
// it in step. It performs no storage itself: the bucket and the upstream
// record API are injected.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arbitros/internal/assets"
	"arbitros/internal/lock"
	"arbitros/internal/records"
)

// ObjectStore is the bucket side of the coordinator.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, originalName, mimeType string) (string, error)
	Delete(ctx context.Context, url string) error
	List(ctx context.Context) ([]assets.Object, error)
}

// RecordStore is the upstream record API.
type RecordStore interface {
	Get(ctx context.Context, id int64) (records.Record, error)
	Update(ctx context.Context, id int64, fields map[string]any) (records.Record, error)
	Records(ctx context.Context) ([]records.Record, error)
}

// CleanupPolicy decides what a failed delete of the previous image means during Attach.
type CleanupPolicy int

const (
	// CleanupBestEffort logs the failure and carries on; the old object may be orphaned.
	CleanupBestEffort CleanupPolicy = iota
	// CleanupStrict aborts the attach before anything new is uploaded.
	CleanupStrict
)

func (p CleanupPolicy) String() string {
	if p == CleanupStrict {
		return "strict"
	}
	return "best_effort"
}

// Upload is an image to attach.
type Upload struct {
	Data         []byte
	OriginalName string
	MimeType     string
}

// AttachResult is the outcome of a successful Attach.
type AttachResult struct {
	URL    string         `json:"url"`
	Record records.Record `json:"record"`
}

// DefaultOperationTimeout bounds the store calls of one operation once they
// are running detached from the caller.
const DefaultOperationTimeout = 30 * time.Second

// Coordinator runs attach and detach against the injected stores.
type Coordinator struct {
	objects   ObjectStore
	records   RecordStore
	locker    lock.Locker
	logger    Logger
	metrics   MetricsRecorder
	clock     Clock
	opTimeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLocker sets the per-record locker. The default is an in-process keyed mutex.
func WithLocker(l lock.Locker) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(clk Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithOperationTimeout bounds the detached portion of an operation.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// NewCoordinator wires a coordinator to its stores.
func NewCoordinator(objects ObjectStore, recs RecordStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		objects:   objects,
		records:   recs,
		locker:    lock.NewMemory(),
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		clock:     ClockFunc(time.Now),
		opTimeout: DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttachBestEffort attaches up, tolerating a failed delete of the previous image.
func (c *Coordinator) AttachBestEffort(ctx context.Context, id int64, up Upload) (AttachResult, error) {
	return c.Attach(ctx, id, up, CleanupBestEffort)
}

// AttachStrict attaches up, failing if the previous image cannot be deleted.
func (c *Coordinator) AttachStrict(ctx context.Context, id int64, up Upload) (AttachResult, error) {
	return c.Attach(ctx, id, up, CleanupStrict)
}

// Attach stores up as the record's image, replacing any previous one.
//
// Order: read record, delete previous object, upload, write reference. A
// failed upload leaves the record untouched; a failed reference write leaves
// the new object orphaned and is reported as *RecordUpdateError.
func (c *Coordinator) Attach(ctx context.Context, id int64, up Upload, policy CleanupPolicy) (AttachResult, error) {
	start := c.clock.Now()
	res, err := c.attach(ctx, id, up, policy)
	c.finish(ctx, "attach", id, start, err)
	return res, err
}

func (c *Coordinator) attach(ctx context.Context, id int64, up Upload, policy CleanupPolicy) (AttachResult, error) {
	if err := ValidateUpload(up); err != nil {
		return AttachResult{}, err
	}
	release, err := c.acquire(ctx, id)
	if err != nil {
		return AttachResult{}, err
	}
	defer release()

	rec, err := c.records.Get(ctx, id)
	if err != nil {
		return AttachResult{}, err
	}

	opCtx, cancel := c.detached(ctx)
	defer cancel()

	if rec.HasAsset() {
		old := rec.AssetURL()
		if err := c.objects.Delete(opCtx, old); err != nil {
			if policy == CleanupStrict {
				return AttachResult{}, err
			}
			c.metrics.CleanupFailed()
			c.logger.Warn("previous image not deleted; continuing", "arbitro_id", id, "url", old, "error", err)
		}
	}

	url, err := c.objects.Put(opCtx, up.Data, up.OriginalName, up.MimeType)
	if err != nil {
		return AttachResult{}, err
	}
	c.metrics.UploadedBytes(len(up.Data))

	updated, err := c.records.Update(opCtx, id, rec.WithAsset(&url))
	if err != nil {
		return AttachResult{}, &RecordUpdateError{ID: id, OrphanURL: url, Err: err}
	}
	return AttachResult{URL: url, Record: updated}, nil
}

// Detach deletes the record's image and clears its reference.
//
// The delete must succeed before the reference is cleared. If clearing fails
// the record keeps pointing at a deleted object; that is reported as
// *RecordUpdateError with StaleURL set.
func (c *Coordinator) Detach(ctx context.Context, id int64) (records.Record, error) {
	start := c.clock.Now()
	rec, err := c.detach(ctx, id)
	c.finish(ctx, "detach", id, start, err)
	return rec, err
}

func (c *Coordinator) detach(ctx context.Context, id int64) (records.Record, error) {
	release, err := c.acquire(ctx, id)
	if err != nil {
		return records.Record{}, err
	}
	defer release()

	rec, err := c.records.Get(ctx, id)
	if err != nil {
		return records.Record{}, err
	}
	if !rec.HasAsset() {
		return records.Record{}, &NoAssetError{ID: id}
	}

	opCtx, cancel := c.detached(ctx)
	defer cancel()

	old := rec.AssetURL()
	if err := c.objects.Delete(opCtx, old); err != nil {
		return records.Record{}, err
	}
	updated, err := c.records.Update(opCtx, id, rec.WithAsset(nil))
	if err != nil {
		return records.Record{}, &RecordUpdateError{ID: id, StaleURL: old, Err: err}
	}
	return updated, nil
}

// ValidateUpload checks an upload without touching any store.
func ValidateUpload(up Upload) error {
	switch {
	case len(up.Data) == 0:
		return &ValidationError{Field: "imagen", Reason: "no file data"}
	case len(up.Data) > assets.MaxUploadBytes:
		return &ValidationError{Field: "imagen", Reason: fmt.Sprintf("file exceeds %d bytes", assets.MaxUploadBytes)}
	case strings.TrimSpace(up.OriginalName) == "":
		return &ValidationError{Field: "imagen", Reason: "missing file name"}
	case !assets.AllowedMimeType(up.MimeType):
		return &ValidationError{Field: "mimetype", Reason: fmt.Sprintf("%q is not an allowed image type (jpeg, png, gif, webp)", up.MimeType)}
	}
	return nil
}

// acquire takes the record lease. Release runs on a fresh context so a
// cancelled caller still frees the lease.
func (c *Coordinator) acquire(ctx context.Context, id int64) (func(), error) {
	lease, err := c.locker.Acquire(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock arbitro %d: %w", id, err)
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			c.logger.Error("release record lock", "arbitro_id", id, "error", err)
		}
	}, nil
}

// detached returns a context that ignores caller cancellation but keeps its
// values, bounded by the operation timeout. Once the first mutation starts the
// sequence runs to completion or to a store failure.
func (c *Coordinator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
}

func (c *Coordinator) finish(ctx context.Context, op string, id int64, start time.Time, err error) {
	elapsed := c.clock.Now().Sub(start)
	c.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		level := c.logger.Error
		if StatusCode(err) < 500 {
			level = c.logger.Info
		}
		level(op+" failed", "arbitro_id", id, "kind", Kind(err), "error", err)
		return
	}
	c.logger.Debug(op+" completed", "arbitro_id", id, "duration", elapsed)
}
