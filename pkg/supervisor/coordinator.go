package supervisor

import "errors"

// StartUp brings the resource up and reports the client handle to cb.
// Concurrent callers share one handler invocation.
func (s *Supervisor[C]) StartUp(cb Callback[C]) {
	cb = orNoop(cb)
	s.exec.post(func() { s.startUp(cb) })
}

// ShutDown closes the resource gracefully.
func (s *Supervisor[C]) ShutDown(cb Callback[C]) {
	cb = orNoop(cb)
	s.exec.post(func() {
		s.cancelRestart()
		s.shutDown(cb)
	})
}

// Restart cycles the resource, using the adaptor's restart handler when there
// is one and shut-down followed by start-up otherwise.
func (s *Supervisor[C]) Restart(cb Callback[C]) {
	cb = orNoop(cb)
	s.exec.post(func() { s.restart(cb) })
}

// Terminate tears the resource down forcefully. Callers always receive a nil error.
// No down event fires when the resource is already down.
func (s *Supervisor[C]) Terminate(cb Callback[C]) {
	cb = orNoop(cb)
	s.exec.post(func() {
		s.cancelRestart()
		s.terminate(cb)
	})
}

func orNoop[C any](cb Callback[C]) Callback[C] {
	if cb == nil {
		return func(error, C) {}
	}
	return cb
}

func (s *Supervisor[C]) startUp(cb Callback[C]) {
	if s.shuttingDown.Load() {
		var zero C
		s.deliver(ActionStartUp, cb, ErrShuttingDown, zero)
		return
	}
	if s.IsUp() {
		s.deliver(ActionStartUp, cb, nil, s.Client())
		return
	}

	s.startingUp.Store(true)
	if !s.queues[ActionStartUp].push(cb) {
		return
	}
	s.runAction(ActionStartUp, s.startUpDone)
}

func (s *Supervisor[C]) startUpDone(err error, client C) {
	var zero C

	if s.shuttingDown.Load() || s.abortStart {
		s.abortStart = false
		s.startingUp.Store(false)
		s.flush(ActionStartUp, ErrShuttingDown, zero)
		if err == nil && !isNil(client) {
			// The connection opened after a shut-down was requested.
			s.setClient(client)
			s.terminate(nil)
		}
		return
	}

	if err != nil && s.IsUp() && s.options().StartFailurePolicy == StartFailureDrop {
		s.log.Warnw("Start-up failed while the resource is up, treating it as a drop", "error", err)
		s.dropped()
		return
	}

	s.startingUp.Store(false)
	if err != nil {
		s.log.Errorw("Start-up failed", "error", err)
		s.flush(ActionStartUp, err, zero)
		if s.options().AutoRestart && !s.IsUp() {
			s.scheduleRestart()
		}
		return
	}

	s.setClient(client)
	s.declareUp()
	s.flush(ActionStartUp, nil, s.Client())
}

func (s *Supervisor[C]) shutDown(cb Callback[C]) {
	q := &s.queues[ActionShutDown]
	if !q.inFlight && !s.IsUp() && !s.startingUp.Load() {
		s.deliver(ActionShutDown, cb, nil, s.Client())
		return
	}

	s.shuttingDown.Store(true)
	if s.startingUp.Load() {
		s.abortStart = true
	}
	if !q.push(cb) {
		return
	}
	s.runAction(ActionShutDown, s.shutDownDone)
}

func (s *Supervisor[C]) shutDownDone(err error, _ C) {
	if err == nil && s.IsUp() {
		s.declareDown()
	}
	if err != nil {
		s.log.Errorw("Shut-down failed", "error", err)
	}
	s.shuttingDown.Store(false)
	s.flush(ActionShutDown, err, s.Client())
}

func (s *Supervisor[C]) restart(cb Callback[C]) {
	q := &s.queues[ActionRestart]
	if !q.push(cb) {
		return
	}
	if s.adaptor.Restart != nil {
		s.runAction(ActionRestart, s.restartDone)
		return
	}

	// Compose shut-down and start-up. Both steps go through their own queues
	// so callers arriving meanwhile join them.
	gen := q.begin()
	s.stats.invoked(ActionRestart)
	s.emit(Event{Type: EventActionBegin, Action: ActionRestart})

	finish := func(err error, client C) {
		if !q.current(gen) {
			return
		}
		s.emit(Event{Type: EventActionComplete, Action: ActionRestart, Err: err})
		s.flush(ActionRestart, err, client)
	}
	start := func() {
		s.startUp(finish)
	}

	if s.IsUp() || s.queues[ActionShutDown].inFlight {
		s.shutDown(func(err error, client C) {
			if err != nil {
				finish(err, client)
				return
			}
			start()
		})
		return
	}
	start()
}

func (s *Supervisor[C]) restartDone(err error, client C) {
	if err != nil {
		s.log.Errorw("Restart failed", "error", err)
		s.flush(ActionRestart, err, client)
		return
	}
	s.setClient(client)
	if !s.IsUp() {
		s.declareUp()
	}
	s.flush(ActionRestart, nil, s.Client())
}

func (s *Supervisor[C]) terminate(cb Callback[C]) {
	if !s.queues[ActionTerminate].push(orNoop(cb)) {
		return
	}
	epoch := s.upEpoch
	s.runAction(ActionTerminate, func(err error, client C) {
		s.terminateDone(epoch, err, client)
	})
}

func (s *Supervisor[C]) terminateDone(epoch uint64, err error, _ C) {
	if err != nil {
		s.log.Warnw("Terminate reported an error, ignoring it", "error", err)
	}
	// A start-up that completed meanwhile owns a new connection.
	if s.state.get() != StateDown && epoch == s.upEpoch {
		s.declareDown()
	}
	if !s.queues[ActionShutDown].inFlight {
		s.shuttingDown.Store(false)
	}
	s.flush(ActionTerminate, nil, s.Client())
}

// retryable reports whether a failed automatic restart should be rescheduled
// by the restart itself. Drops schedule on their own and shut-downs stop them.
func retryable(err error) bool {
	return !errors.Is(err, ErrDropped) && !errors.Is(err, ErrShuttingDown)
}
