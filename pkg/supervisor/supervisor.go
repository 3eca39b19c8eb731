package supervisor

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/oklog/ulid/v2"
)

// Supervisor owns the lifecycle of one resource whose client handle has type C.
type Supervisor[C any] struct {
	name    string
	id      string
	adaptor Adaptor[C]
	opts    atomic.Pointer[Options]
	clock   clockwork.Clock
	log     core.Logger
	exec    *executor

	state        stateTracker
	startingUp   atomic.Bool
	shuttingDown atomic.Bool
	// abortStart records a shut-down that arrived while a start-up was in flight.
	abortStart bool
	// upEpoch counts declare-ups.
	upEpoch uint64
	client  atomic.Pointer[C]

	queues   [actionCount]actionQueue[C]
	restarts backoff
	stats    statsCounter

	observersMu  sync.RWMutex
	observers    []observer
	nextObserver uint64
}

type settings struct {
	opts     *Options
	clock    clockwork.Clock
	log      core.Logger
	spawn    func(task func())
	handlers []EventHandler
}

// Option configures New.
type Option func(*settings)

// WithOptions sets the supervisor options. The value is copied.
func WithOptions(opts *Options) Option {
	return func(s *settings) {
		s.opts = opts
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithLogger sets the logger. The supervisor name and instance id are added to it.
func WithLogger(log core.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithSpawn sets how the executor starts its drain goroutine, for example on
// a worker pool.
func WithSpawn(spawn func(task func())) Option {
	return func(s *settings) {
		s.spawn = spawn
	}
}

// WithEventHandler subscribes h before the supervisor is returned.
func WithEventHandler(h EventHandler) Option {
	return func(s *settings) {
		s.handlers = append(s.handlers, h)
	}
}

// New creates a supervisor for the resource called name.
func New[C any](name string, adaptor Adaptor[C], opts ...Option) (*Supervisor[C], error) {
	cfg := &settings{}
	for _, opt := range opts {
		opt(cfg)
	}

	o := NewOptions()
	if cfg.opts != nil {
		o = cfg.opts.clone()
	}
	if err := o.Complete(); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}

	id := ulid.Make().String()
	var log core.Logger
	if cfg.log != nil {
		log = cfg.log.With("supervisor", name, "instance", id)
	} else {
		log = logger.With("supervisor", name, "instance", id)
	}

	s := &Supervisor[C]{
		name:    name,
		id:      id,
		adaptor: adaptor,
		clock:   cfg.clock,
		log:     log,
		exec:    newExecutor(cfg.spawn, log),
	}
	s.opts.Store(o)
	s.restarts.delay.Store(int64(o.RestartDelay))

	for _, h := range cfg.handlers {
		s.Subscribe(h)
	}

	warnOptions(log, o)
	log.Debugw("Supervisor created", "options", o.String())
	return s, nil
}

// Name returns the resource name.
func (s *Supervisor[C]) Name() string {
	return s.name
}

// ID returns the unique instance id.
func (s *Supervisor[C]) ID() string {
	return s.id
}

// Options returns a copy of the active options.
func (s *Supervisor[C]) Options() *Options {
	return s.options().clone()
}

func (s *Supervisor[C]) options() *Options {
	return s.opts.Load()
}

// IsStartingUp reports whether a start-up is in flight.
func (s *Supervisor[C]) IsStartingUp() bool {
	return s.startingUp.Load()
}

// IsShuttingDown reports whether a shut-down is in flight.
func (s *Supervisor[C]) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Client returns the current client handle, or the zero value if none was
// ever stored. The handle may be stale while the resource is down.
func (s *Supervisor[C]) Client() C {
	if p := s.client.Load(); p != nil {
		return *p
	}
	var zero C
	return zero
}

// SetClient replaces the client handle. Nil values are ignored.
func (s *Supervisor[C]) SetClient(client C) {
	s.exec.post(func() { s.setClient(client) })
}

func (s *Supervisor[C]) setClient(client C) {
	if isNil(client) {
		return
	}
	s.client.Store(&client)
}

// Dropped signals an unsolicited loss of the resource.
func (s *Supervisor[C]) Dropped() {
	s.exec.post(s.dropped)
}

// Reconfigure validates opts and applies them to subsequent actions. Turning
// auto-restart off cancels a pending restart.
func (s *Supervisor[C]) Reconfigure(opts *Options) error {
	o := opts.clone()
	if err := o.Complete(); err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}

	s.exec.post(func() {
		s.opts.Store(o)
		if !o.AutoRestart {
			s.cancelRestart()
		}
		if s.restarts.attempts.Load() == 0 {
			s.restarts.delay.Store(int64(o.RestartDelay))
		}
		warnOptions(s.log, o)
		s.log.Infow("Supervisor reconfigured", "options", o.String())
	})
	return nil
}

func warnOptions(log core.Logger, o *Options) {
	if o.restartsDisabled() {
		log.Warnw("Auto-restart is enabled but max-restart-attempts is 0, drops will not be restarted")
	}
}

// sameClient reports whether a and b hold the same handle. Handles of
// incomparable types are never considered equal.
func sameClient[C any](a, b C) bool {
	va := reflect.ValueOf(&a).Elem()
	if !va.Comparable() {
		return false
	}
	return va.Equal(reflect.ValueOf(&b).Elem())
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
