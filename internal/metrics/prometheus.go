// Package metrics exports coordinator outcomes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"arbitros/internal/core"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "arbitros"

// Observer implements core.MetricsRecorder on Prometheus collectors.
type Observer struct {
	duration        *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
	cleanupFailures prometheus.Counter
}

var _ core.MetricsRecorder = (*Observer)(nil)

// New registers the coordinator collectors on reg (the default registerer
// when nil). Collectors already registered under the same names are reused,
// so building a second Observer against one registry is safe.
func New(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{}
	var err error
	if o.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of image attach, detach and reconcile operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if o.errors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Count of failed image operations.",
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if o.uploadedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative image payload uploaded to the bucket.",
	})); err != nil {
		return nil, err
	}
	if o.cleanupFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_failures_total",
		Help:      "Previous images left behind because their delete failed.",
	})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// Observe records one operation.
func (o *Observer) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(operation).Observe(duration.Seconds())
	if !success {
		o.errors.WithLabelValues(operation).Inc()
	}
}

func (o *Observer) UploadedBytes(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.uploadedBytes.Add(float64(n))
}

func (o *Observer) CleanupFailed() {
	if o == nil {
		return
	}
	o.cleanupFailures.Inc()
}
