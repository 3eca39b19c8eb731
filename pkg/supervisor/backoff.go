package supervisor

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// backoff is the restart controller state. attempts, delay and exhausted are
// readable from any goroutine; timer and gen belong to the executor.
type backoff struct {
	attempts  atomic.Int32
	delay     atomic.Int64
	exhausted atomic.Bool

	timer clockwork.Timer
	gen   uint64
}

// scheduleRestart arms the next automatic restart, or gives up once
// MaxRestartAttempts consecutive attempts have been made.
func (s *Supervisor[C]) scheduleRestart() {
	opts := s.options()
	if !opts.AutoRestart || s.restarts.timer != nil || s.restarts.exhausted.Load() {
		return
	}

	attempt := int(s.restarts.attempts.Add(1))
	if opts.MaxRestartAttempts >= 0 && attempt > opts.MaxRestartAttempts {
		s.restarts.exhausted.Store(true)
		s.stats.restartsExhausted.Add(1)
		s.log.Errorw("Giving up on automatic restarts",
			"attempts", attempt-1,
			"max", opts.MaxRestartAttempts,
		)
		s.emit(Event{Type: EventRestartExhausted, Attempt: attempt - 1, Err: ErrRestartExhausted})
		return
	}

	delay := time.Duration(s.restarts.delay.Load())
	s.restarts.gen++
	gen := s.restarts.gen
	s.restarts.timer = s.clock.AfterFunc(delay, func() {
		s.exec.post(func() { s.fireRestart(gen) })
	})
	s.restarts.delay.Store(int64(nextDelay(delay, opts)))

	s.stats.restartsScheduled.Add(1)
	s.log.Infow("Automatic restart scheduled", "attempt", attempt, "delay", delay)
	s.emit(Event{Type: EventRestartScheduled, Attempt: attempt, Delay: delay})
}

func (s *Supervisor[C]) fireRestart(gen uint64) {
	if gen != s.restarts.gen || s.restarts.timer == nil {
		return
	}
	s.restarts.timer = nil

	s.restart(func(err error, _ C) {
		if err == nil {
			return
		}
		s.log.Warnw("Automatic restart failed", "error", err)
		if retryable(err) && !s.IsUp() {
			s.scheduleRestart()
		}
	})
}

// cancelRestart disarms a pending automatic restart without touching the
// attempt count.
func (s *Supervisor[C]) cancelRestart() {
	if s.restarts.timer == nil {
		return
	}
	s.restarts.timer.Stop()
	s.restarts.timer = nil
	s.restarts.gen++
	s.log.Debugw("Pending automatic restart cancelled")
}

// resetBackoff runs on every declare-up.
func (s *Supervisor[C]) resetBackoff() {
	s.cancelRestart()
	if s.restarts.attempts.Swap(0) > 0 {
		s.log.Infow("Resource recovered, restart backoff reset")
	}
	s.restarts.delay.Store(int64(s.options().RestartDelay))
	s.restarts.exhausted.Store(false)
}

func nextDelay(d time.Duration, opts *Options) time.Duration {
	next := time.Duration(float64(d) * opts.BackoffCoefficient)
	if opts.MaxRestartDelay > 0 && next > opts.MaxRestartDelay {
		next = opts.MaxRestartDelay
	}
	return next
}
