package tasks

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerRunsEverythingBeforeClose(t *testing.T) {
	r := NewRunner(2, 1, time.Second)

	var n atomic.Int64
	for i := 0; i < 50; i++ {
		r.Go("count", int64(i), func(ctx context.Context) error {
			n.Add(1)
			return nil
		})
	}
	r.Close()
	assert.Equal(t, int64(50), n.Load())
}

func TestRunnerSurvivesErrorsAndPanics(t *testing.T) {
	r := NewRunner(1, 4, time.Second)

	var after atomic.Bool
	r.Go("fails", 1, func(ctx context.Context) error { return errors.New("smtp down") })
	r.Go("panics", 2, func(ctx context.Context) error { panic("nil map") })
	r.Go("after", 3, func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	r.Close()
	assert.True(t, after.Load())
}

func TestRunnerDetachesFromCaller(t *testing.T) {
	r := NewRunner(1, 1, time.Second)

	caller, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r.Go("detached", 1, func(ctx context.Context) error {
		<-caller.Done()
		done <- ctx.Err()
		return nil
	})
	cancel()
	r.Close()

	require.Len(t, done, 1)
	assert.NoError(t, <-done)
}

func TestRunnerTimeout(t *testing.T) {
	r := NewRunner(1, 1, 20*time.Millisecond)

	done := make(chan error, 1)
	r.Go("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	r.Close()
	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
}

func TestGoAfterCloseIsDropped(t *testing.T) {
	r := NewRunner(1, 1, time.Second)
	r.Close()

	var ran atomic.Bool
	r.Go("late", 1, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Close()
	assert.False(t, ran.Load())
}
