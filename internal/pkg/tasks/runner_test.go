package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsEveryTask(t *testing.T) {
	r := NewRunner(2, time.Second)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		r.Submit("count", func(context.Context) error {
			n.Add(1)
			return nil
		})
	}
	r.Shutdown()

	assert.EqualValues(t, 10, n.Load())
}

func TestRunner_IsolatesFailures(t *testing.T) {
	r := NewRunner(1, time.Second)

	var after atomic.Bool
	r.Submit("panics", func(context.Context) error { panic("boom") })
	r.Submit("fails", func(context.Context) error { return errors.New("boom") })
	r.Submit("after", func(context.Context) error {
		after.Store(true)
		return nil
	})

	require.NotPanics(t, r.Shutdown)
	assert.True(t, after.Load())
}

func TestRunner_TaskDeadline(t *testing.T) {
	r := NewRunner(1, 10*time.Millisecond)

	var got error
	r.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	r.Shutdown()

	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestRunner_DropsAfterShutdown(t *testing.T) {
	r := NewRunner(1, time.Second)
	r.Shutdown()

	var ran atomic.Bool
	r.Submit("late", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	assert.False(t, ran.Load())
}
