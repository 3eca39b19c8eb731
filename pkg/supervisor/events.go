package supervisor

import (
	"time"
)

// EventType identifies a supervisor event.
type EventType int

const (
	// EventUp fires on every declare-up.
	EventUp EventType = iota
	// EventDown fires on every declare-down.
	EventDown
	// EventDropped fires after a drop has been handled.
	EventDropped
	// EventRevived fires when the resource comes up after having been down.
	EventRevived
	// EventActionBegin fires when a handler invocation starts.
	EventActionBegin
	// EventActionComplete fires when a handler invocation completes in time.
	EventActionComplete
	// EventActionTimeout fires when a handler misses its deadline.
	EventActionTimeout
	// EventRestartScheduled fires when an automatic restart is armed.
	EventRestartScheduled
	// EventRestartExhausted fires when automatic restarts give up.
	EventRestartExhausted
	// EventNoHandler fires when an action runs without a handler.
	EventNoHandler
)

func (t EventType) String() string {
	switch t {
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	case EventDropped:
		return "dropped"
	case EventRevived:
		return "revived"
	case EventActionBegin:
		return "begin"
	case EventActionComplete:
		return "complete"
	case EventActionTimeout:
		return "timeout"
	case EventRestartScheduled:
		return "restart-scheduled"
	case EventRestartExhausted:
		return "restart-exhausted"
	case EventNoHandler:
		return "no-handler"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on the supervisor's executor.
type Event struct {
	Time       time.Time
	Type       EventType
	Supervisor string
	// Action is set for begin, complete, timeout and no-handler events.
	Action Action
	// Err carries the action result, the timeout or the give-up reason.
	Err error
	// Attempt and Delay describe restart scheduling.
	Attempt int
	Delay   time.Duration
}

// Name renders the event as "up", "dropped", "begin:startUp" and so on.
func (e Event) Name() string {
	switch e.Type {
	case EventActionBegin, EventActionComplete, EventActionTimeout, EventNoHandler:
		return e.Type.String() + ":" + e.Action.String()
	default:
		return e.Type.String()
	}
}

// EventHandler observes supervisor events. Handlers run on the executor, so
// state queries inside them see the state the event describes.
type EventHandler func(Event)

type observer struct {
	id uint64
	fn EventHandler
}

// Subscribe registers h and returns a function removing it.
func (s *Supervisor[C]) Subscribe(h EventHandler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	s.observersMu.Lock()
	s.nextObserver++
	id := s.nextObserver
	s.observers = append(s.observers, observer{id: id, fn: h})
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		defer s.observersMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Supervisor[C]) emit(ev Event) {
	ev.Time = s.clock.Now()
	ev.Supervisor = s.name

	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()

	for _, o := range observers {
		s.notify(o.fn, ev)
	}
}

func (s *Supervisor[C]) notify(fn EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Event handler panicked", "event", ev.Name(), "panic", r)
		}
	}()
	fn(ev)
}
