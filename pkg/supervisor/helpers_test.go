package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/logger/core"
	"github.com/stretchr/testify/require"
)

type conn struct {
	id int
}

// fakeResource is an adaptor whose handlers either complete immediately or
// park their done callbacks until the test releases them.
type fakeResource struct {
	mu        sync.Mutex
	nextID    int
	startErr  error
	stopErr   error
	termErr   error
	holdStart bool
	holdStop  bool

	pendingStart []Callback[*conn]
	pendingStop  []Callback[*conn]
	terminated   []*conn

	starts atomic.Int32
	stops  atomic.Int32
	terms  atomic.Int32
}

func (f *fakeResource) adaptor() Adaptor[*conn] {
	return Adaptor[*conn]{
		StartUp: func(_ *Supervisor[*conn], _ *conn, done Callback[*conn]) {
			f.starts.Add(1)
			f.mu.Lock()
			if f.holdStart {
				f.pendingStart = append(f.pendingStart, done)
				f.mu.Unlock()
				return
			}
			err := f.startErr
			f.nextID++
			id := f.nextID
			f.mu.Unlock()

			if err != nil {
				done(err, nil)
				return
			}
			done(nil, &conn{id: id})
		},
		ShutDown: func(_ *Supervisor[*conn], _ *conn, done Callback[*conn]) {
			f.stops.Add(1)
			f.mu.Lock()
			if f.holdStop {
				f.pendingStop = append(f.pendingStop, done)
				f.mu.Unlock()
				return
			}
			err := f.stopErr
			f.mu.Unlock()
			done(err, nil)
		},
		Terminate: func(_ *Supervisor[*conn], c *conn, done Callback[*conn]) {
			f.terms.Add(1)
			f.mu.Lock()
			f.terminated = append(f.terminated, c)
			err := f.termErr
			f.mu.Unlock()
			done(err, nil)
		},
	}
}

func (f *fakeResource) setStartErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

func (f *fakeResource) pendingStarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pendingStart)
}

func (f *fakeResource) pendingStops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pendingStop)
}

func (f *fakeResource) terminatedClients() []*conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*conn(nil), f.terminated...)
}

func (f *fakeResource) releaseStart(err error, c *conn) {
	f.mu.Lock()
	done := f.pendingStart[0]
	f.pendingStart = f.pendingStart[1:]
	f.mu.Unlock()
	done(err, c)
}

func (f *fakeResource) releaseStop(err error) {
	f.mu.Lock()
	done := f.pendingStop[0]
	f.pendingStop = f.pendingStop[1:]
	f.mu.Unlock()
	done(err, nil)
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// warnLogger records Warnw messages.
type warnLogger struct {
	core.Logger
	mu    sync.Mutex
	warns []string
}

func newWarnLogger() *warnLogger {
	return &warnLogger{Logger: core.NewNoOpLogger(nil)}
}

func (l *warnLogger) With(...interface{}) core.Logger { return l }

func (l *warnLogger) Warnw(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func newTestSupervisor(t *testing.T, f *fakeResource, opts *Options, extra ...Option) (*Supervisor[*conn], *recorder) {
	t.Helper()

	if opts == nil {
		opts = NewOptions()
	}
	rec := &recorder{}
	all := append([]Option{WithOptions(opts), WithEventHandler(rec.handle)}, extra...)
	s, err := New("test", f.adaptor(), all...)
	require.NoError(t, err)
	return s, rec
}

// barrier waits until every task posted before it has run.
func barrier[C any](s *Supervisor[C]) {
	ch := make(chan struct{})
	s.exec.post(func() { close(ch) })
	<-ch
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	var zero T
	return zero
}

func collect(ch chan<- result[*conn]) Callback[*conn] {
	return func(err error, c *conn) {
		ch <- result[*conn]{client: c, err: err}
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var errRefused = errors.New("connection refused")
