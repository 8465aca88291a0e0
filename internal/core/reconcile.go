package core

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"arbitros/internal/assets"
	"arbitros/internal/records"
)

// DefaultOrphanMinAge keeps Reconcile away from objects an in-flight attach
// has uploaded but not yet referenced.
const DefaultOrphanMinAge = time.Hour

// ReconcileOptions configures Reconcile. The zero value only reports.
type ReconcileOptions struct {
	Delete bool
	MinAge time.Duration
}

// DanglingRef is a record reference with no backing object.
type DanglingRef struct {
	RecordID int64  `json:"recordId"`
	URL      string `json:"url"`
}

// ReconcileReport compares the bucket with the record references.
type ReconcileReport struct {
	Objects  int             `json:"objects"`
	Records  int             `json:"records"`
	Orphans  []assets.Object `json:"orphans"`
	Dangling []DanglingRef   `json:"dangling"`
	Deleted  []string        `json:"deleted"`
	Failed   []string        `json:"failed"`
}

// Reconcile lists the bucket and the records, reports objects no record
// references and references whose object is gone, and optionally deletes
// orphans older than MinAge.
func (c *Coordinator) Reconcile(ctx context.Context, opts ReconcileOptions) (ReconcileReport, error) {
	start := c.clock.Now()
	report, err := c.reconcile(ctx, opts)
	c.metrics.Observe(ctx, "reconcile", err == nil, c.clock.Now().Sub(start))
	if err != nil {
		c.logger.Error("reconcile failed", "kind", Kind(err), "error", err)
	}
	return report, err
}

func (c *Coordinator) reconcile(ctx context.Context, opts ReconcileOptions) (ReconcileReport, error) {
	var (
		objects []assets.Object
		recs    []records.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objects, err = c.objects.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recs, err = c.records.Records(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{
		Objects:  len(objects),
		Records:  len(recs),
		Orphans:  []assets.Object{},
		Dangling: []DanglingRef{},
		Deleted:  []string{},
		Failed:   []string{},
	}
	stored := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		stored[obj.Key] = struct{}{}
	}
	referenced := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		if !rec.HasAsset() {
			continue
		}
		key := assets.KeyFromURL(rec.AssetURL())
		referenced[key] = struct{}{}
		if _, ok := stored[key]; !ok {
			report.Dangling = append(report.Dangling, DanglingRef{RecordID: rec.ID, URL: rec.AssetURL()})
		}
	}
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; !ok {
			report.Orphans = append(report.Orphans, obj)
		}
	}
	sort.Slice(report.Dangling, func(i, j int) bool { return report.Dangling[i].RecordID < report.Dangling[j].RecordID })

	if !opts.Delete {
		return report, nil
	}
	now := c.clock.Now()
	for _, obj := range report.Orphans {
		if !obj.LastModified.IsZero() && now.Sub(obj.LastModified) < opts.MinAge {
			continue
		}
		if err := c.objects.Delete(ctx, obj.URL); err != nil {
			c.logger.Warn("orphan not deleted", "key", obj.Key, "error", err)
			report.Failed = append(report.Failed, obj.Key)
			continue
		}
		report.Deleted = append(report.Deleted, obj.Key)
	}
	c.logger.Info("orphans removed", "deleted", len(report.Deleted), "failed", len(report.Failed))
	return report, nil
}
