//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(workers, queue int) *Pool {
	l := zerolog.New(io.Discard)
	return NewPool(workers, queue, &l)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := newTestPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var done int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}))
	}
	// failing and panicking tasks must not kill a worker
	require.NoError(t, p.Submit(func(ctx context.Context) error { return errors.New("boom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) error {
		atomic.AddInt32(&done, 1)
		return nil
	}))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 6 }, time.Second, 5*time.Millisecond)
}

func TestPool_SubmitRejectsWhenSaturated(t *testing.T) {
	p := newTestPool(1, 1) // not started: nothing drains the queue

	require.NoError(t, p.Submit(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, p.Submit(func(ctx context.Context) error { return nil }), ErrQueueFull)
	assert.ErrorIs(t, p.Submit(nil), ErrNilTask)
}

func TestPool_StopIsIdempotent(t *testing.T) {
	p := newTestPool(1, 1)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
