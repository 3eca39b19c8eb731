package datasource

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/sqlite"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/infra/pool"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	name    string
	pingErr error
	closes  atomic.Int32
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Ping(context.Context) error { return c.pingErr }

func (c *fakeClient) Close() error {
	c.closes.Add(1)
	return nil
}

// journal records start and stop order across resources.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func fakeSupervisor(t *testing.T, name string, j *journal, client *fakeClient, connectErr error) *supervisor.Supervisor[*fakeClient] {
	t.Helper()
	opts := storage.NewOptions()
	opts.ProbeInterval = 0

	s, err := storage.NewSupervisor(name, func(context.Context) (*fakeClient, error) {
		if connectErr != nil {
			return nil, connectErr
		}
		j.add("start:" + name)
		return client, nil
	}, opts)
	require.NoError(t, err)

	s.Subscribe(func(ev supervisor.Event) {
		if ev.Type == supervisor.EventDown {
			j.add("stop:" + name)
		}
	})
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	j := &journal{}

	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "cache", j, &fakeClient{}, nil)))
	err := Register(m, TypeEtcd, fakeSupervisor(t, "cache", j, &fakeClient{}, nil))
	assert.ErrorIs(t, err, storage.ErrClientAlreadyExists)

	assert.Equal(t, map[StorageType][]string{TypeRedis: {"cache"}}, m.ListRegistered())
}

func TestStartAllAndStopAllOrder(t *testing.T) {
	m := NewManager()
	j := &journal{}
	require.NoError(t, Register(m, TypeMySQL, fakeSupervisor(t, "db", j, &fakeClient{}, nil)))
	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "cache", j, &fakeClient{}, nil)))
	ctx := testContext(t)

	require.NoError(t, m.StartAll(ctx))
	require.NoError(t, m.StopAll(ctx))

	assert.Equal(t, []string{"start:db", "start:cache", "stop:cache", "stop:db"}, j.list())
}

func TestStartAllRollsBack(t *testing.T) {
	m := NewManager()
	j := &journal{}
	first := &fakeClient{}
	refused := errors.New("connection refused")
	require.NoError(t, Register(m, TypeMySQL, fakeSupervisor(t, "db", j, first, nil)))
	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "cache", j, &fakeClient{}, refused)))

	err := m.StartAll(testContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "redis 'cache'")

	assert.Equal(t, []string{"start:db", "stop:db"}, j.list())
	assert.EqualValues(t, 1, first.closes.Load())

	res, typ, err := m.Lookup("db")
	require.NoError(t, err)
	assert.Equal(t, TypeMySQL, typ)
	assert.False(t, res.IsUp())
}

func TestHealthCheckAll(t *testing.T) {
	group, err := pool.NewGroup(pool.DefaultGroupConfig())
	require.NoError(t, err)
	t.Cleanup(group.Release)

	m := NewManager(WithHealthRunner(group.Runner(pool.HealthCheckPool)))
	j := &journal{}
	broken := errors.New("i/o timeout")
	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "cache", j, &fakeClient{name: "redis"}, nil)))
	require.NoError(t, Register(m, TypeMongoDB, fakeSupervisor(t, "docs", j, &fakeClient{name: "mongodb", pingErr: broken}, nil)))
	require.NoError(t, Register(m, TypeEtcd, fakeSupervisor(t, "registry", j, &fakeClient{name: "etcd"}, nil)))
	ctx := testContext(t)

	cache, _, _ := m.Lookup("cache")
	docs, _, _ := m.Lookup("docs")
	require.NoError(t, cache.Start(ctx))
	require.NoError(t, docs.Start(ctx))

	results := m.HealthCheckAll(ctx)
	require.Len(t, results, 3)
	assert.True(t, results["cache"].Healthy)
	assert.False(t, results["docs"].Healthy)
	assert.Equal(t, broken.Error(), results["docs"].Error)
	assert.False(t, results["registry"].Healthy)
	assert.Equal(t, storage.ErrNotConnected.Error(), results["registry"].Error)
	assert.False(t, m.IsHealthy(ctx))
}

func TestObserveSeesEveryResource(t *testing.T) {
	m := NewManager()
	j := &journal{}
	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "cache", j, &fakeClient{}, nil)))

	var mu sync.Mutex
	seen := map[string]StorageType{}
	m.Observe(func(st StorageType, ev supervisor.Event) {
		if ev.Type == supervisor.EventUp {
			mu.Lock()
			seen[ev.Supervisor] = st
			mu.Unlock()
		}
	})
	require.NoError(t, Register(m, TypeNATS, fakeSupervisor(t, "events", j, &fakeClient{}, nil)))

	require.NoError(t, m.StartAll(testContext(t)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]StorageType{"cache": TypeRedis, "events": TypeNATS}, seen)
}

func TestStatusesAndReconfigure(t *testing.T) {
	m := NewManager()
	j := &journal{}
	require.NoError(t, Register(m, TypeRedis, fakeSupervisor(t, "b-cache", j, &fakeClient{}, nil)))
	require.NoError(t, Register(m, TypeMySQL, fakeSupervisor(t, "a-db", j, &fakeClient{}, nil)))

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a-db", statuses[0].Name)
	assert.Equal(t, TypeMySQL, statuses[0].Type)
	assert.Equal(t, "unknown", statuses[0].State)

	opts := supervisor.NewOptions()
	opts.AutoRestart = true
	require.NoError(t, m.Reconfigure(opts))
	res, _, err := m.Lookup("b-cache")
	require.NoError(t, err)
	assert.True(t, res.(*supervisor.Supervisor[*fakeClient]).Options().AutoRestart)

	opts.BackoffCoefficient = 0.5
	assert.ErrorIs(t, m.Reconfigure(opts), supervisor.ErrInvalidOptions)
}

func TestLookupUnknown(t *testing.T) {
	_, _, err := NewManager().Lookup("missing")
	assert.ErrorIs(t, err, storage.ErrClientNotFound)
}

func TestTypedGetterWithSQLite(t *testing.T) {
	m := NewManager()
	opts := sqlite.NewOptions()
	opts.Path = filepath.Join(t.TempDir(), "registry.db")
	opts.Lifecycle.ProbeInterval = 0

	s, err := m.RegisterSQLite("local", opts)
	require.NoError(t, err)
	ctx := testContext(t)

	_, err = m.SQLite().Get("local")
	assert.ErrorIs(t, err, storage.ErrNotConnected)

	require.NoError(t, m.StartAll(ctx))
	client, err := m.SQLite().Get("local")
	require.NoError(t, err)
	assert.Same(t, s.Client(), client)
	require.NoError(t, client.Ping(ctx))

	_, err = m.MySQL().Get("local")
	assert.ErrorIs(t, err, storage.ErrClientNotFound)
	_, err = m.Redis().Get("missing")
	assert.ErrorIs(t, err, storage.ErrClientNotFound)
	assert.Panics(t, func() { m.Redis().MustGet("missing") })

	var _ *sqldb.Client = m.SQLite().MustGet("local")
	require.NoError(t, m.StopAll(ctx))
}
