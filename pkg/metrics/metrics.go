// Package metrics records service activity for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives operation timings and batch outcomes from the services.
type Recorder interface {
	// Observe records one operation ("compound.update", "compound.rollback").
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// BatchItem counts one scored item by model type and outcome.
	BatchItem(modelType, outcome string)
	// BatchJob counts a job reaching a terminal status.
	BatchJob(status string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Observe(context.Context, string, bool, time.Duration) {}
func (Noop) BatchItem(string, string) {}
func (Noop) BatchJob(string) {}

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	operations *prometheus.HistogramVec
	items      *prometheus.CounterVec
	jobs       *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drugovery",
			Name:      "operation_duration_seconds",
			Help:      "Duration of compound and prediction operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drugovery",
			Name:      "batch_items_total",
			Help:      "Batch prediction items scored, by model type and outcome.",
		}, []string{"model_type", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drugovery",
			Name:      "batch_jobs_total",
			Help:      "Batch prediction jobs that reached a terminal status.",
		}, []string{"status"}),
	}

	var err error
	if p.operations, err = register(reg, p.operations); err != nil {
		return nil, err
	}
	if p.items, err = register(reg, p.items); err != nil {
		return nil, err
	}
	if p.jobs, err = register(reg, p.jobs); err != nil {
		return nil, err
	}
	return p, nil
}

// register adds c to reg, reusing the collector already registered under
// the same name so that two recorders share one series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (p *Prometheus) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	p.operations.WithLabelValues(operation, result).Observe(duration.Seconds())
}

func (p *Prometheus) BatchItem(modelType, outcome string) {
	p.items.WithLabelValues(modelType, outcome).Inc()
}

func (p *Prometheus) BatchJob(status string) {
	p.jobs.WithLabelValues(status).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Since is shorthand for recording a deferred operation:
//
//	defer metrics.Since(ctx, rec, "compound.update", time.Now(), &err)
func Since(ctx context.Context, rec Recorder, operation string, start time.Time, errp *error) {
	if rec == nil {
		return
	}
	rec.Observe(ctx, operation, errp == nil || *errp == nil, time.Since(start))
}
