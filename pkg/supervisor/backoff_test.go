package supervisor

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backoffOptions(maxAttempts int) *Options {
	opts := NewOptions()
	opts.AutoRestart = true
	opts.ActionTimeout = 0
	opts.BackoffCoefficient = 2
	opts.RestartDelay = 100 * time.Millisecond
	opts.MaxRestartAttempts = maxAttempts
	return opts
}

func TestRestartDelayGrowsAndResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &fakeResource{}
	s, rec := newTestSupervisor(t, f, backoffOptions(-1), WithClock(clock))
	ctx := testContext(t)

	_, err := s.StartUpContext(ctx)
	require.NoError(t, err)

	f.setStartErr(errRefused)
	s.Dropped()

	delays := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, want := range delays {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		barrier(s)

		scheduled := rec.ofType(EventRestartScheduled)
		require.Len(t, scheduled, i+1)
		assert.Equal(t, want, scheduled[i].Delay)
		assert.Equal(t, i+1, scheduled[i].Attempt)

		clock.Advance(want)
	}

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	barrier(s)
	assert.Equal(t, 1600*time.Millisecond, s.Stats().RestartDelay)
	assert.True(t, s.IsDown())

	f.setStartErr(nil)
	clock.Advance(1600 * time.Millisecond)

	require.Eventually(t, s.IsUp, time.Second, time.Millisecond)
	barrier(s)

	stats := s.Stats()
	assert.Equal(t, 0, stats.RestartAttempts)
	assert.Equal(t, 100*time.Millisecond, stats.RestartDelay)
	assert.EqualValues(t, 5, stats.RestartsScheduled)
	assert.Equal(t, 1, rec.count(EventRevived))
	assert.EqualValues(t, 6, f.starts.Load())
}

func TestZeroRestartAttemptsGivesUpImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &fakeResource{}
	s, rec := newTestSupervisor(t, f, backoffOptions(0), WithClock(clock))
	ctx := testContext(t)

	_, err := s.StartUpContext(ctx)
	require.NoError(t, err)

	s.Dropped()
	barrier(s)

	assert.Equal(t, 0, rec.count(EventRestartScheduled))
	exhausted := rec.ofType(EventRestartExhausted)
	require.Len(t, exhausted, 1)
	assert.Equal(t, 0, exhausted[0].Attempt)
	assert.ErrorIs(t, exhausted[0].Err, ErrRestartExhausted)
	assert.True(t, s.Snapshot().GaveUp)
	assert.EqualValues(t, 1, s.Stats().RestartsExhausted)

	// A manual start-up clears the give-up state.
	_, err = s.StartUpContext(ctx)
	require.NoError(t, err)
	assert.False(t, s.Snapshot().GaveUp)
}

func TestRestartAttemptsAreBounded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &fakeResource{}
	s, rec := newTestSupervisor(t, f, backoffOptions(2), WithClock(clock))
	ctx := testContext(t)

	_, err := s.StartUpContext(ctx)
	require.NoError(t, err)

	f.setStartErr(errRefused)
	s.Dropped()

	for _, d := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(d)
	}

	require.Eventually(t, func() bool {
		return rec.count(EventRestartExhausted) == 1
	}, time.Second, time.Millisecond)
	barrier(s)

	assert.Equal(t, 2, rec.count(EventRestartScheduled))
	assert.Equal(t, 1, rec.count(EventRestartExhausted))
	assert.Equal(t, 2, rec.ofType(EventRestartExhausted)[0].Attempt)
	assert.EqualValues(t, 3, f.starts.Load())
	assert.True(t, s.IsDown())
	require.NoError(t, clock.BlockUntilContext(ctx, 0))
}

func TestFailedRestartWithoutDropIsNotRetriedWhenAutoRestartIsOff(t *testing.T) {
	f := &fakeResource{startErr: errRefused}
	s, rec := newTestSupervisor(t, f, nil)

	_, err := s.StartUpContext(testContext(t))
	require.Error(t, err)
	barrier(s)
	assert.Equal(t, 0, rec.count(EventRestartScheduled))
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		coef  float64
		max   time.Duration
		want  time.Duration
	}{
		{name: "default coefficient", delay: time.Second, coef: 1.2, want: 1200 * time.Millisecond},
		{name: "doubling", delay: 100 * time.Millisecond, coef: 2, want: 200 * time.Millisecond},
		{name: "capped", delay: time.Second, coef: 2, max: 1500 * time.Millisecond, want: 1500 * time.Millisecond},
		{name: "below cap", delay: 500 * time.Millisecond, coef: 2, max: 5 * time.Second, want: time.Second},
		{name: "zero base", delay: 0, coef: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &Options{BackoffCoefficient: tt.coef, MaxRestartDelay: tt.max}
			assert.Equal(t, tt.want, nextDelay(tt.delay, opts))
		})
	}
}
