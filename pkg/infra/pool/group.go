package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// GroupConfig configures the pools of a Group. A nil entry skips that pool.
type GroupConfig struct {
	Connect     *Config `json:"connect" mapstructure:"connect"`
	HealthCheck *Config `json:"health-check" mapstructure:"health-check"`
	Executor    *Config `json:"executor" mapstructure:"executor"`
}

// DefaultGroupConfig returns a configuration with every pool enabled.
func DefaultGroupConfig() *GroupConfig {
	return &GroupConfig{
		Connect:     ConnectPoolConfig(),
		HealthCheck: HealthCheckPoolConfig(),
		Executor:    ExecutorPoolConfig(),
	}
}

// Group holds one pool per Type.
type Group struct {
	mu    sync.RWMutex
	pools map[Type]*Pool
}

// NewGroup creates the pools described by config.
func NewGroup(config *GroupConfig) (*Group, error) {
	if config == nil {
		config = DefaultGroupConfig()
	}

	g := &Group{pools: make(map[Type]*Pool)}
	for typ, c := range map[Type]*Config{
		ConnectPool:     config.Connect,
		HealthCheckPool: config.HealthCheck,
		ExecutorPool:    config.Executor,
	} {
		if c == nil {
			continue
		}
		p, err := NewPool(string(typ), typ, c)
		if err != nil {
			g.Release()
			return nil, err
		}
		g.pools[typ] = p
	}
	return g, nil
}

// Get returns the pool of the given type.
func (g *Group) Get(typ Type) (*Pool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, ok := g.pools[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, typ)
	}
	return p, nil
}

// Submit runs task on the pool of the given type.
func (g *Group) Submit(typ Type, task func()) error {
	p, err := g.Get(typ)
	if err != nil {
		return err
	}
	return p.Submit(task)
}

// Runner returns a task runner bound to one pool type. Tasks that cannot be
// submitted run on a fresh goroutine, so the runner never drops work.
func (g *Group) Runner(typ Type) func(task func()) {
	return func(task func()) {
		if err := g.Submit(typ, task); err != nil {
			logger.Debugw("Pool submit failed, running task on a new goroutine",
				"pool", string(typ),
				"error", err,
			)
			go task()
		}
	}
}

// Stats returns the stats of every pool.
func (g *Group) Stats() map[Type]Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[Type]Stats, len(g.pools))
	for typ, p := range g.pools {
		out[typ] = p.Stats()
	}
	return out
}

// Release closes every pool.
func (g *Group) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.pools {
		p.Release()
	}
}

// ReleaseTimeout closes every pool, waiting up to timeout for each.
func (g *Group) ReleaseTimeout(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for typ, p := range g.pools {
		if err := p.ReleaseTimeout(timeout); err != nil {
			errs = append(errs, fmt.Errorf("release %s pool: %w", typ, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}
