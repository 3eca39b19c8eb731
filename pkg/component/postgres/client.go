// Package postgres supervises a PostgreSQL connection pool opened through GORM.
package postgres

import (
	"context"
	"fmt"

	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	pgdriver "gorm.io/driver/postgres"
)

// Client is the supervised PostgreSQL handle.
type Client = sqldb.Client

// NewWithContext opens a PostgreSQL client and verifies it within ctx.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	return sqldb.Open(ctx, "postgres", pgdriver.Open(BuildDSN(opts)), &opts.PoolOptions)
}

// NewSupervisor creates a supervisor for one PostgreSQL database.
func NewSupervisor(name string, opts *Options, options ...storage.Option) (*supervisor.Supervisor[*Client], error) {
	if err := opts.Complete(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return storage.NewSupervisor(name, func(ctx context.Context) (*Client, error) {
		return NewWithContext(ctx, opts)
	}, opts.Lifecycle, options...)
}
