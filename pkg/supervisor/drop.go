package supervisor

// dropped handles an unsolicited loss of the resource. Signals arriving while
// shutting down or already down are ignored, so bursts collapse into one drop.
func (s *Supervisor[C]) dropped() {
	if s.shuttingDown.Load() || !s.IsUp() {
		s.log.Debugw("Ignoring drop signal",
			"state", s.state.get().String(),
			"shuttingDown", s.shuttingDown.Load(),
		)
		return
	}

	s.stats.drops.Add(1)
	s.declareDown()

	var zero C
	s.startingUp.Store(false)
	s.abortStart = false
	s.flush(ActionStartUp, ErrDropped, zero)
	s.flush(ActionShutDown, ErrDropped, zero)
	s.flush(ActionRestart, ErrDropped, zero)

	s.terminate(nil)

	s.log.Warnw("Resource dropped")
	s.emit(Event{Type: EventDropped, Err: ErrDropped})
	s.scheduleRestart()
}
