package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signquiz-service/internal/app"
	"signquiz-service/internal/logging"
	"signquiz-service/internal/metrics"
)

func TestReconcilerRetriesUntilApplied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.NewRegistry())
	r := app.NewReconciler(logging.Discard(), m, app.ReconcilerOptions{MaxRetries: 10, InitialInterval: time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var calls atomic.Int32
	require.True(t, r.Enqueue("add", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("still down")
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Reconciled.WithLabelValues("add", "applied")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestReconcilerDropsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.NewRegistry())
	r := app.NewReconciler(logging.Discard(), m, app.ReconcilerOptions{MaxRetries: 2, InitialInterval: time.Millisecond})
	go r.Run(ctx)

	var calls atomic.Int32
	r.Enqueue("challenge", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("permanently down")
	})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Reconciled.WithLabelValues("challenge", "dropped")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	// first attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestReconcilerEnqueueIsNonBlocking(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := app.NewReconciler(logging.Discard(), m, app.ReconcilerOptions{QueueSize: 1})

	noop := func(context.Context) error { return nil }
	assert.True(t, r.Enqueue("add", noop))
	assert.False(t, r.Enqueue("add", noop), "full queue must refuse instead of blocking")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconciled.WithLabelValues("add", "dropped")))
}
