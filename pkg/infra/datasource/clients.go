package datasource

import (
	"github.com/kart-io/lifeline/pkg/component/etcd"
	"github.com/kart-io/lifeline/pkg/component/mongodb"
	"github.com/kart-io/lifeline/pkg/component/mysql"
	"github.com/kart-io/lifeline/pkg/component/nats"
	"github.com/kart-io/lifeline/pkg/component/postgres"
	"github.com/kart-io/lifeline/pkg/component/redis"
	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/sqlite"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
)

func register[C storage.Client](m *Manager, t StorageType, s *supervisor.Supervisor[C], err error) (*supervisor.Supervisor[C], error) {
	if err != nil {
		return nil, err
	}
	if err := Register(m, t, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterMySQL creates and registers a MySQL supervisor.
func (m *Manager) RegisterMySQL(name string, opts *mysql.Options, options ...storage.Option) (*supervisor.Supervisor[*sqldb.Client], error) {
	s, err := mysql.NewSupervisor(name, opts, options...)
	return register(m, TypeMySQL, s, err)
}

// RegisterPostgres creates and registers a PostgreSQL supervisor.
func (m *Manager) RegisterPostgres(name string, opts *postgres.Options, options ...storage.Option) (*supervisor.Supervisor[*sqldb.Client], error) {
	s, err := postgres.NewSupervisor(name, opts, options...)
	return register(m, TypePostgres, s, err)
}

// RegisterSQLite creates and registers a SQLite supervisor.
func (m *Manager) RegisterSQLite(name string, opts *sqlite.Options, options ...storage.Option) (*supervisor.Supervisor[*sqldb.Client], error) {
	s, err := sqlite.NewSupervisor(name, opts, options...)
	return register(m, TypeSQLite, s, err)
}

// RegisterRedis creates and registers a Redis supervisor.
func (m *Manager) RegisterRedis(name string, opts *redis.Options, options ...storage.Option) (*supervisor.Supervisor[*redis.Client], error) {
	s, err := redis.NewSupervisor(name, opts, options...)
	return register(m, TypeRedis, s, err)
}

// RegisterMongoDB creates and registers a MongoDB supervisor.
func (m *Manager) RegisterMongoDB(name string, opts *mongodb.Options, options ...storage.Option) (*supervisor.Supervisor[*mongodb.Client], error) {
	s, err := mongodb.NewSupervisor(name, opts, options...)
	return register(m, TypeMongoDB, s, err)
}

// RegisterEtcd creates and registers an etcd supervisor.
func (m *Manager) RegisterEtcd(name string, opts *etcd.Options, options ...storage.Option) (*supervisor.Supervisor[*etcd.Client], error) {
	s, err := etcd.NewSupervisor(name, opts, options...)
	return register(m, TypeEtcd, s, err)
}

// RegisterNATS creates and registers a NATS supervisor.
func (m *Manager) RegisterNATS(name string, opts *nats.Options, options ...storage.Option) (*supervisor.Supervisor[*nats.Client], error) {
	s, err := nats.NewSupervisor(name, opts, options...)
	return register(m, TypeNATS, s, err)
}

// MySQL returns a getter for MySQL clients.
func (m *Manager) MySQL() *TypedGetter[*sqldb.Client] {
	return NewTypedGetter[*sqldb.Client](m, TypeMySQL)
}

// Postgres returns a getter for PostgreSQL clients.
func (m *Manager) Postgres() *TypedGetter[*sqldb.Client] {
	return NewTypedGetter[*sqldb.Client](m, TypePostgres)
}

// SQLite returns a getter for SQLite clients.
func (m *Manager) SQLite() *TypedGetter[*sqldb.Client] {
	return NewTypedGetter[*sqldb.Client](m, TypeSQLite)
}

// Redis returns a getter for Redis clients.
func (m *Manager) Redis() *TypedGetter[*redis.Client] {
	return NewTypedGetter[*redis.Client](m, TypeRedis)
}

// MongoDB returns a getter for MongoDB clients.
func (m *Manager) MongoDB() *TypedGetter[*mongodb.Client] {
	return NewTypedGetter[*mongodb.Client](m, TypeMongoDB)
}

// Etcd returns a getter for etcd clients.
func (m *Manager) Etcd() *TypedGetter[*etcd.Client] {
	return NewTypedGetter[*etcd.Client](m, TypeEtcd)
}

// NATS returns a getter for NATS clients.
func (m *Manager) NATS() *TypedGetter[*nats.Client] {
	return NewTypedGetter[*nats.Client](m, TypeNATS)
}
