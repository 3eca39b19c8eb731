package storage

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

// Connector opens a verified client. It must honour ctx.
type Connector[C Client] func(ctx context.Context) (C, error)

// Runner runs a blocking task off the supervisor's executor.
type Runner func(task func())

func goRunner(task func()) { go task() }

type settings struct {
	run        Runner
	probeRun   Runner
	clock      clockwork.Clock
	log        core.Logger
	supervisor []supervisor.Option
}

// Option configures a Lifecycle and the supervisor built around it.
type Option func(*settings)

// WithRunner runs connects and closes through r, typically a connect pool.
func WithRunner(r Runner) Option {
	return func(s *settings) {
		s.run = r
	}
}

// WithProbeRunner runs health probes through r, typically a health-check pool.
func WithProbeRunner(r Runner) Option {
	return func(s *settings) {
		s.probeRun = r
	}
}

// WithClock sets the clock of the probe and of the supervisor.
func WithClock(c clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = c
		s.supervisor = append(s.supervisor, supervisor.WithClock(c))
	}
}

// WithLogger sets the logger of the lifecycle and of the supervisor.
func WithLogger(l core.Logger) Option {
	return func(s *settings) {
		s.log = l
		s.supervisor = append(s.supervisor, supervisor.WithLogger(l))
	}
}

// WithSupervisorOptions passes opts to supervisor.New.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(s *settings) {
		s.supervisor = append(s.supervisor, opts...)
	}
}

// Lifecycle adapts a Connector to the supervisor's handler contract. Start-up
// opens a client and starts its probe, shut-down closes it, and terminate
// closes it ignoring errors.
type Lifecycle[C Client] struct {
	name    string
	connect Connector[C]
	opts    *Options
	cfg     *settings
	log     core.Logger

	mu    sync.Mutex
	probe *probe
	gen   uint64
	// attempt numbers start-ups; only the latest one may install a watch.
	attempt uint64
	watched *C
}

// NewLifecycle creates a Lifecycle. A nil opts uses NewOptions.
func NewLifecycle[C Client](name string, connect Connector[C], opts *Options, options ...Option) *Lifecycle[C] {
	cfg := &settings{}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.run == nil {
		cfg.run = goRunner
	}
	if cfg.probeRun == nil {
		cfg.probeRun = cfg.run
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}
	if opts == nil {
		opts = NewOptions()
	}

	log := cfg.log
	if log == nil {
		log = logger.With("resource", name)
	}

	return &Lifecycle[C]{
		name:    name,
		connect: connect,
		opts:    opts,
		cfg:     cfg,
		log:     log,
	}
}

// NewSupervisor builds a supervisor whose handlers are a Lifecycle over connect.
func NewSupervisor[C Client](name string, connect Connector[C], opts *Options, options ...Option) (*supervisor.Supervisor[C], error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	l := NewLifecycle(name, connect, opts, options...)
	return supervisor.New(name, l.Adaptor(), l.cfg.supervisor...)
}

// Adaptor returns the handler set for supervisor.New.
func (l *Lifecycle[C]) Adaptor() supervisor.Adaptor[C] {
	return supervisor.Adaptor[C]{
		StartUp:   l.startUp,
		ShutDown:  l.shutDown,
		Terminate: l.terminate,
	}
}

func (l *Lifecycle[C]) startUp(s *supervisor.Supervisor[C], _ C, done supervisor.Callback[C]) {
	l.mu.Lock()
	l.attempt++
	attempt := l.attempt
	l.mu.Unlock()

	l.cfg.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.ConnectTimeout)
		defer cancel()

		client, err := l.connect(ctx)
		if err != nil {
			var zero C
			done(ErrConnectionFailed.
				WithMessage(fmt.Sprintf("failed to connect %s", l.name)).
				WithCause(err), zero)
			return
		}

		l.watch(s, client, attempt)
		done(nil, client)
	})
}

func (l *Lifecycle[C]) shutDown(_ *supervisor.Supervisor[C], client C, done supervisor.Callback[C]) {
	l.unwatch(client)
	if isZero(client) {
		done(nil, client)
		return
	}

	l.cfg.run(func() {
		if err := client.Close(); err != nil {
			done(fmt.Errorf("close %s: %w", l.name, err), client)
			return
		}
		l.log.Infow("Client closed", "kind", client.Name())
		done(nil, client)
	})
}

func (l *Lifecycle[C]) terminate(_ *supervisor.Supervisor[C], client C, done supervisor.Callback[C]) {
	l.unwatch(client)
	if isZero(client) {
		done(nil, client)
		return
	}

	l.cfg.run(func() {
		if err := client.Close(); err != nil {
			l.log.Debugw("Close during terminate failed", "error", err)
		}
		done(nil, client)
	})
}

func (l *Lifecycle[C]) watch(s *supervisor.Supervisor[C], client C, attempt uint64) {
	l.mu.Lock()
	if attempt != l.attempt {
		l.mu.Unlock()
		l.log.Debugw("Not watching client of a superseded start-up", "kind", client.Name())
		return
	}
	l.gen++
	gen := l.gen
	old := l.probe
	l.probe = nil
	l.watched = &client
	l.mu.Unlock()

	if old != nil {
		old.stop()
	}

	// Notifications from a client that has since been replaced or closed
	// are discarded.
	lost := func(reason string, err error) {
		if !l.current(gen) {
			return
		}
		l.log.Warnw("Connection lost, reporting drop", "reason", reason, "error", err)
		s.Dropped()
	}

	if w, ok := any(client).(Watcher); ok {
		w.Watch(func(err error) { lost("driver", err) })
	}
	if r, ok := any(client).(Reconnector); ok {
		r.WatchConnection(
			func(err error) {
				if l.current(gen) {
					l.log.Warnw("Connection interrupted, driver is reconnecting", "error", err)
					s.DeclareDown()
				}
			},
			func() {
				if l.current(gen) {
					l.log.Infow("Driver reconnected")
					s.DeclareUp()
				}
			},
		)
	}

	if l.opts.ProbeInterval <= 0 {
		return
	}

	p := &probe{
		client:    client,
		interval:  l.opts.ProbeInterval,
		timeout:   l.opts.ProbeTimeout,
		threshold: l.opts.ProbeFailures,
		clock:     l.cfg.clock,
		run:       l.cfg.probeRun,
		log:       l.log,
		onFailure: func(err error) {
			lost("probe", ErrProbeFailed.WithCause(err))
		},
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.probe = p
	l.mu.Unlock()

	p.start()
}

func (l *Lifecycle[C]) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.gen
}

// unwatch stops watching client. A client other than the watched one, such
// as the leftover of a superseded start-up, leaves the current watch alone.
func (l *Lifecycle[C]) unwatch(client C) {
	l.mu.Lock()
	if !isZero(client) && l.watched != nil && !sameClient(*l.watched, client) {
		l.mu.Unlock()
		return
	}
	l.watched = nil
	l.gen++
	p := l.probe
	l.probe = nil
	l.mu.Unlock()

	if p != nil {
		p.stop()
	}
}

func isZero[C any](c C) bool {
	return reflect.ValueOf(&c).Elem().IsZero()
}

func sameClient[C any](a, b C) bool {
	va := reflect.ValueOf(&a).Elem()
	if !va.Comparable() {
		return false
	}
	return va.Equal(reflect.ValueOf(&b).Elem())
}
