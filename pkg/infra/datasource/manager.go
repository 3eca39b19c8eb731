// Package datasource keeps the supervised resources of a process in one
// registry.
//
// Every resource is a supervisor registered under a unique name together
// with its storage type. The manager starts and stops them as a group,
// checks their health on a worker pool, fans their events out to observers
// and hands out typed clients:
//
//	mgr := datasource.NewManager()
//	cache, err := mgr.RegisterRedis("cache", redisOpts)
//	if err != nil {
//	    return err
//	}
//	if err := mgr.StartAll(ctx); err != nil {
//	    return err
//	}
//	defer mgr.StopAll(context.Background())
//
//	rdb, err := mgr.Redis().Get("cache")
package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// StorageType represents the type of a supervised resource.
type StorageType string

const (
	TypeMySQL    StorageType = "mysql"
	TypePostgres StorageType = "postgres"
	TypeSQLite   StorageType = "sqlite"
	TypeRedis    StorageType = "redis"
	TypeMongoDB  StorageType = "mongodb"
	TypeEtcd     StorageType = "etcd"
	TypeNATS     StorageType = "nats"
)

// Observer receives the events of every registered resource.
type Observer func(storageType StorageType, ev supervisor.Event)

// Status is the registry view of one resource.
type Status struct {
	Type StorageType `json:"type"`
	supervisor.Snapshot
}

type entry struct {
	name        string
	storageType StorageType
	res         supervisor.Managed
	// client returns the client while the resource is up.
	client func() (storage.Client, bool)
	// typed is the *supervisor.Supervisor[C] behind res.
	typed any
}

// Manager is a registry of supervised resources.
type Manager struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	observers []Observer

	run storage.Runner
	log core.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithHealthRunner runs health checks through r, typically the health-check pool.
func WithHealthRunner(r storage.Runner) Option {
	return func(m *Manager) {
		m.run = r
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l core.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates an empty registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[string]*entry),
		run:     func(task func()) { go task() },
		log:     logger.With("component", "datasource"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds s under its name. Names are unique across storage types.
func Register[C storage.Client](m *Manager, storageType StorageType, s *supervisor.Supervisor[C]) error {
	e := &entry{
		name:        s.Name(),
		storageType: storageType,
		res:         s,
		typed:       s,
		client: func() (storage.Client, bool) {
			if !s.IsUp() {
				return nil, false
			}
			return s.Client(), true
		},
	}
	return m.add(e)
}

func (m *Manager) add(e *entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[e.name]; ok {
		return storage.ErrClientAlreadyExists.WithMessage(
			fmt.Sprintf("%s instance '%s' already registered as %s", e.storageType, e.name, existing.storageType))
	}

	m.entries[e.name] = e
	m.order = append(m.order, e.name)
	for _, o := range m.observers {
		m.subscribe(e, o)
	}

	m.log.Infow("Resource registered", "name", e.name, "type", string(e.storageType))
	return nil
}

func (m *Manager) subscribe(e *entry, o Observer) {
	t := e.storageType
	e.res.Subscribe(func(ev supervisor.Event) { o(t, ev) })
}

// Observe subscribes o to the events of every current and future resource.
func (m *Manager) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observers = append(m.observers, o)
	for _, name := range m.order {
		m.subscribe(m.entries[name], o)
	}
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, storage.ErrClientNotFound.WithMessage(fmt.Sprintf("resource '%s' not registered", name))
	}
	return e, nil
}

// Lookup returns the resource registered under name.
func (m *Manager) Lookup(name string) (supervisor.Managed, StorageType, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, "", err
	}
	return e.res, e.storageType, nil
}

func (m *Manager) ordered() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entry, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.entries[name])
	}
	return out
}

// StartAll starts every resource in registration order. When one fails, the
// resources started so far are stopped again and the failure is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	entries := m.ordered()

	var started []*entry
	for _, e := range entries {
		if err := e.res.Start(ctx); err != nil {
			m.log.Errorw("Failed to start resource, rolling back",
				"name", e.name, "type", string(e.storageType), "error", err)
			if rbErr := stopAll(ctx, started); rbErr != nil {
				m.log.Warnw("Rollback incomplete", "error", rbErr)
			}
			return fmt.Errorf("failed to start %s '%s': %w", e.storageType, e.name, err)
		}
		started = append(started, e)
	}
	return nil
}

// StopAll shuts every resource down in reverse registration order and
// aggregates the failures.
func (m *Manager) StopAll(ctx context.Context) error {
	return stopAll(ctx, m.ordered())
}

func stopAll(ctx context.Context, entries []*entry) error {
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.res.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s '%s': %w", e.storageType, e.name, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// HealthCheckAll pings every resource in parallel. Resources that are not
// up are reported unhealthy without a ping.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]storage.HealthStatus {
	entries := m.ordered()
	results := make(map[string]storage.HealthStatus, len(entries))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, e := range entries {
		client, ok := e.client()
		if !ok {
			results[e.name] = storage.HealthStatus{
				Name:  e.name,
				Error: storage.ErrNotConnected.Error(),
			}
			continue
		}

		wg.Add(1)
		name := e.name
		m.run(func() {
			defer wg.Done()
			status := storage.CheckHealth(ctx, name, client)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		})
	}

	wg.Wait()
	return results
}

// IsHealthy reports whether every resource is up and answers pings.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// Statuses returns the snapshot of every resource, sorted by name.
func (m *Manager) Statuses() []Status {
	entries := m.ordered()
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		out = append(out, Status{Type: e.storageType, Snapshot: e.res.Snapshot()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reconfigure applies opts to every resource.
func (m *Manager) Reconfigure(opts *supervisor.Options) error {
	var errs []error
	for _, e := range m.ordered() {
		if err := e.res.Reconfigure(opts); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure '%s': %w", e.name, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// ListRegistered returns the registered names per storage type.
func (m *Manager) ListRegistered() map[StorageType][]string {
	result := make(map[StorageType][]string)
	for _, e := range m.ordered() {
		result[e.storageType] = append(result[e.storageType], e.name)
	}
	return result
}
