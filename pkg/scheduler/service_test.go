package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_TicksOnFakeClock(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewService(WithClock(clock))

	var count atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:     "sweep",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			count.Add(1)
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, time.Millisecond)

	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(2), s.Runs("sweep"))
}

func TestService_RunOnStart(t *testing.T) {
	s := NewService(WithClock(NewFakeClock(epoch)))
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Register(Job{
		Name:       "missed",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestService_NoOverlap(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewService(WithClock(clock))

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var active, maxActive atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:     "slow",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			started <- struct{}{}
			<-release
			active.Add(-1)
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))

	clock.Advance(time.Minute)
	<-started
	assert.Error(t, s.RunOnce(context.Background(), "slow"), "manual run refused while a tick is running")

	clock.Advance(time.Minute)
	clock.Advance(time.Minute)
	close(release)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestService_JobErrorsAndPanicsDoNotStopLoop(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewService(WithClock(clock))

	var count atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:     "flaky",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			switch count.Add(1) {
			case 1:
				return errors.New("store unavailable")
			case 2:
				panic("nil meeting")
			}
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	for want := int32(1); want <= 3; want++ {
		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return count.Load() == want }, time.Second, time.Millisecond)
	}
}

func TestService_StartStop(t *testing.T) {
	s := NewService(WithClock(NewFakeClock(epoch)))
	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Minute, Run: func(context.Context) error { return nil }}))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, s.Register(Job{Name: "b", Interval: time.Minute, Run: func(context.Context) error { return nil }}), ErrAlreadyRunning)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
	require.NoError(t, s.Stop(context.Background()), "second stop is a no-op")

	require.NoError(t, s.Start(context.Background()), "restart after stop")
	require.NoError(t, s.Stop(context.Background()))
}

func TestService_StopWaitsForInFlightRun(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewService(WithClock(clock))

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Register(Job{
		Name:     "job",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			finished.Store(true)
			return ctx.Err()
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	clock.Advance(time.Minute)
	<-started

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load())
}

func TestService_StopTimeout(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewService(WithClock(clock))

	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)
	require.NoError(t, s.Register(Job{
		Name:     "stuck",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			close(started)
			<-block
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	clock.Advance(time.Minute)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestService_RegisterValidation(t *testing.T) {
	s := NewService()
	assert.Error(t, s.Register(Job{Interval: time.Minute, Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Register(Job{Name: "x", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Register(Job{Name: "x", Interval: time.Minute}))

	require.NoError(t, s.Register(Job{Name: "x", Interval: time.Minute, Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Register(Job{Name: "x", Interval: time.Minute, Run: func(context.Context) error { return nil }}))
}

func TestService_RunOnce(t *testing.T) {
	s := NewService()
	var count atomic.Int32
	require.NoError(t, s.Register(Job{Name: "sweep", Interval: time.Hour, Run: func(context.Context) error {
		count.Add(1)
		return errors.New("partial")
	}}))

	assert.EqualError(t, s.RunOnce(context.Background(), "sweep"), "partial")
	assert.Equal(t, int32(1), count.Load())
	assert.ErrorIs(t, s.RunOnce(context.Background(), "nope"), ErrUnknownJob)
}
