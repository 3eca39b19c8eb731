package supervisor

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// runAction invokes the handler for action under the timeout guard and hands
// the single result to complete on the executor. A result arriving after the
// deadline, after a second done call, or after the action's waiters were
// answered by a drop is discarded.
func (s *Supervisor[C]) runAction(action Action, complete func(err error, client C)) {
	q := &s.queues[action]
	gen := q.begin()
	s.stats.invoked(action)
	s.emit(Event{Type: EventActionBegin, Action: action})

	h := s.adaptor.handler(action)
	if h == nil {
		s.log.Warnw("No handler registered, completing action as a no-op", "action", action.String())
		s.emit(Event{Type: EventNoHandler, Action: action, Err: ErrNoHandler})
		s.emit(Event{Type: EventActionComplete, Action: action})
		complete(nil, s.Client())
		return
	}

	var (
		settled bool
		timer   clockwork.Timer
	)
	finish := func(err error, client C) {
		settled = true
		if timer != nil {
			timer.Stop()
		}
		complete(err, client)
	}

	if timeout := s.options().ActionTimeout; timeout > 0 {
		timer = s.clock.AfterFunc(timeout, func() {
			s.exec.post(func() {
				if settled || !q.current(gen) {
					return
				}
				err := timeoutError(action, timeout)
				s.stats.timeouts.Add(1)
				s.log.Warnw("Action timed out", "action", action.String(), "timeout", timeout)
				s.emit(Event{Type: EventActionTimeout, Action: action, Err: err})
				var zero C
				finish(err, zero)
			})
		})
	}

	done := func(err error, client C) {
		s.exec.post(func() {
			if settled {
				s.log.Debugw("Discarding late completion", "action", action.String(), "error", err)
				s.release(action, err, client)
				return
			}
			if !q.current(gen) {
				settled = true
				if timer != nil {
					timer.Stop()
				}
				s.log.Debugw("Discarding completion of superseded invocation", "action", action.String(), "error", err)
				s.release(action, err, client)
				return
			}
			if err != nil {
				err = handlerFailure(action, err)
			}
			s.emit(Event{Type: EventActionComplete, Action: action, Err: err})
			finish(err, client)
		})
	}

	s.invoke(action, h, s.Client(), done)
}

// release terminates a client opened by a discarded start-up or restart. The
// state, queues and stored client are left alone.
func (s *Supervisor[C]) release(action Action, err error, client C) {
	if err != nil || isNil(client) || sameClient(client, s.Client()) {
		return
	}
	if action != ActionStartUp && action != ActionRestart {
		return
	}
	h := s.adaptor.Terminate
	if h == nil {
		s.log.Warnw("Discarded completion left a client open, no terminate handler registered", "action", action.String())
		return
	}

	s.stats.released.Add(1)
	s.log.Warnw("Terminating client of a discarded completion", "action", action.String())
	s.invoke(ActionTerminate, h, client, func(err error, _ C) {
		if err != nil {
			s.log.Debugw("Terminating discarded client failed", "error", err)
		}
	})
}

func (s *Supervisor[C]) invoke(action Action, h Handler[C], client C, done Callback[C]) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Handler panicked", "action", action.String(), "panic", r)
			var zero C
			done(fmt.Errorf("panic: %v", r), zero)
		}
	}()
	h(s, client, done)
}

// flush answers every waiter of action in FIFO order with the same result.
func (s *Supervisor[C]) flush(action Action, err error, client C) {
	for _, cb := range s.queues[action].drain() {
		s.deliver(action, cb, err, client)
	}
}

func (s *Supervisor[C]) deliver(action Action, cb Callback[C], err error, client C) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Callback panicked", "action", action.String(), "panic", r)
		}
	}()
	cb(err, client)
}
