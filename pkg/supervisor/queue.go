package supervisor

// actionQueue collapses concurrent callers of one action onto a single
// handler invocation. Owned by the executor.
type actionQueue[C any] struct {
	waiters  []Callback[C]
	inFlight bool
	// gen identifies the current invocation; drain bumps it so a result
	// from an invocation whose waiters were already answered is discarded.
	gen uint64
}

// push queues cb and reports whether the caller must start the action.
func (q *actionQueue[C]) push(cb Callback[C]) bool {
	q.waiters = append(q.waiters, cb)
	if q.inFlight {
		return false
	}
	q.inFlight = true
	return true
}

// begin starts a new invocation and returns its generation.
func (q *actionQueue[C]) begin() uint64 {
	q.gen++
	return q.gen
}

func (q *actionQueue[C]) current(gen uint64) bool {
	return q.inFlight && q.gen == gen
}

// drain empties the queue in FIFO order and releases the in-flight guard.
func (q *actionQueue[C]) drain() []Callback[C] {
	waiters := q.waiters
	q.waiters = nil
	q.inFlight = false
	q.gen++
	return waiters
}
