package supervisor

import "sync/atomic"

// State is the up/down state of the managed resource.
type State int32

const (
	// StateUnknown is the state of a supervisor that has never declared up or down.
	StateUnknown State = iota
	// StateUp means the resource is serving.
	StateUp
	// StateDown means the resource is not serving.
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// stateTracker keeps the current and the immediately preceding state.
// Only the executor writes it.
type stateTracker struct {
	current  atomic.Int32
	previous atomic.Int32
}

// set records s and returns the state it replaced.
func (t *stateTracker) set(s State) State {
	prev := State(t.current.Swap(int32(s)))
	t.previous.Store(int32(prev))
	return prev
}

func (t *stateTracker) get() State {
	return State(t.current.Load())
}

func (t *stateTracker) prev() State {
	return State(t.previous.Load())
}

// IsUp reports whether the resource is currently up.
func (s *Supervisor[C]) IsUp() bool {
	return s.state.get() == StateUp
}

// IsDown reports whether the resource is not up. A fresh supervisor is down.
func (s *Supervisor[C]) IsDown() bool {
	return !s.IsUp()
}

// WasUp reports whether the state before the latest transition was up.
func (s *Supervisor[C]) WasUp() bool {
	return s.state.prev() == StateUp
}

// WasDown reports whether the state before the latest transition was not up.
func (s *Supervisor[C]) WasDown() bool {
	return !s.WasUp()
}

// State returns the current state.
func (s *Supervisor[C]) State() State {
	return s.state.get()
}

// DeclareUp marks the resource as up. Adaptors whose clients reconnect on
// their own use it to report recovery.
func (s *Supervisor[C]) DeclareUp() {
	s.exec.post(s.declareUp)
}

// DeclareDown marks the resource as down.
func (s *Supervisor[C]) DeclareDown() {
	s.exec.post(s.declareDown)
}

func (s *Supervisor[C]) declareUp() {
	prev := s.state.set(StateUp)
	s.upEpoch++
	s.log.Debugw("Resource declared up", "previous", prev.String())
	s.emit(Event{Type: EventUp})
	if prev == StateDown {
		s.emit(Event{Type: EventRevived})
	}
	s.resetBackoff()
}

func (s *Supervisor[C]) declareDown() {
	prev := s.state.set(StateDown)
	s.log.Debugw("Resource declared down", "previous", prev.String())
	s.emit(Event{Type: EventDown})
}
