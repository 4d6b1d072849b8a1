package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"signquiz-service/internal/metrics"
)

// ReconcilerOptions bounds the background retry queue.
type ReconcilerOptions struct {
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
}

// Reconciler replays ledger writes that failed while a quiz kept going.
// Jobs are retried with exponential backoff and dropped once retries run out.
type Reconciler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    ReconcilerOptions
	jobs    chan reconcileJob
}

type reconcileJob struct {
	op string
	fn func(ctx context.Context) error
}

func NewReconciler(logger *slog.Logger, m *metrics.Metrics, opts ReconcilerOptions) *Reconciler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	return &Reconciler{
		logger:  logger,
		metrics: m,
		opts:    opts,
		jobs:    make(chan reconcileJob, opts.QueueSize),
	}
}

// Enqueue hands fn to the worker without blocking. It reports false when the queue is full.
func (r *Reconciler) Enqueue(op string, fn func(ctx context.Context) error) bool {
	select {
	case r.jobs <- reconcileJob{op: op, fn: fn}:
		return true
	default:
		r.logger.Error("reconcile queue full, dropping write", "op", op)
		r.metrics.Reconciled.WithLabelValues(op, "dropped").Inc()
		return false
	}
}

// Run processes jobs until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-r.jobs:
			r.attempt(ctx, job)
		}
	}
}

func (r *Reconciler) attempt(ctx context.Context, job reconcileJob) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.InitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, r.opts.MaxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		return job.fn(ctx)
	}, b, func(err error, wait time.Duration) {
		r.logger.Debug("retrying write", "op", job.op, "error", err, "wait", wait)
	})
	if err != nil {
		r.logger.Error("giving up on write", "op", job.op, "error", err)
		r.metrics.Reconciled.WithLabelValues(job.op, "dropped").Inc()
		return
	}
	r.metrics.Reconciled.WithLabelValues(job.op, "applied").Inc()
}
