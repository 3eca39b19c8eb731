package supervisor

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time copy of a supervisor's counters. Invocation
// counters are monotonic and never reset.
type Stats struct {
	StartUp   uint64 `json:"start_up"`
	ShutDown  uint64 `json:"shut_down"`
	Restart   uint64 `json:"restart"`
	Terminate uint64 `json:"terminate"`

	Drops             uint64 `json:"drops"`
	Timeouts          uint64 `json:"timeouts"`
	RestartsScheduled uint64 `json:"restarts_scheduled"`
	RestartsExhausted uint64 `json:"restarts_exhausted"`
	// Released counts clients terminated because their completion was discarded.
	Released uint64 `json:"released"`

	// RestartAttempts counts consecutive restart attempts since the last recovery.
	RestartAttempts int `json:"restart_attempts"`
	// RestartDelay is the delay the next automatic restart will use.
	RestartDelay time.Duration `json:"restart_delay"`
}

type statsCounter struct {
	invocations       [actionCount]atomic.Uint64
	drops             atomic.Uint64
	timeouts          atomic.Uint64
	restartsScheduled atomic.Uint64
	restartsExhausted atomic.Uint64
	released          atomic.Uint64
}

func (c *statsCounter) invoked(a Action) {
	c.invocations[a].Add(1)
}

// Stats returns a copy of the counters.
func (s *Supervisor[C]) Stats() Stats {
	return Stats{
		StartUp:           s.stats.invocations[ActionStartUp].Load(),
		ShutDown:          s.stats.invocations[ActionShutDown].Load(),
		Restart:           s.stats.invocations[ActionRestart].Load(),
		Terminate:         s.stats.invocations[ActionTerminate].Load(),
		Drops:             s.stats.drops.Load(),
		Timeouts:          s.stats.timeouts.Load(),
		RestartsScheduled: s.stats.restartsScheduled.Load(),
		RestartsExhausted: s.stats.restartsExhausted.Load(),
		Released:          s.stats.released.Load(),
		RestartAttempts:   int(s.restarts.attempts.Load()),
		RestartDelay:      time.Duration(s.restarts.delay.Load()),
	}
}

// Snapshot describes a supervisor for status endpoints.
type Snapshot struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	State         string `json:"state"`
	PreviousState string `json:"previous_state"`
	StartingUp    bool   `json:"starting_up"`
	ShuttingDown  bool   `json:"shutting_down"`
	GaveUp        bool   `json:"gave_up"`
	Stats         Stats  `json:"stats"`
}

// Snapshot returns the current state, flags and counters.
func (s *Supervisor[C]) Snapshot() Snapshot {
	return Snapshot{
		Name:          s.name,
		ID:            s.id,
		State:         s.state.get().String(),
		PreviousState: s.state.prev().String(),
		StartingUp:    s.IsStartingUp(),
		ShuttingDown:  s.IsShuttingDown(),
		GaveUp:        s.restarts.exhausted.Load(),
		Stats:         s.Stats(),
	}
}
