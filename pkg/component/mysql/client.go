// Package mysql supervises a MySQL connection pool opened through GORM.
package mysql

import (
	"context"
	"fmt"

	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	mysqldriver "gorm.io/driver/mysql"
)

// Client is the supervised MySQL handle.
type Client = sqldb.Client

// NewWithContext opens a MySQL client and verifies it within ctx.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mysql options cannot be nil")
	}
	return sqldb.Open(ctx, "mysql", mysqldriver.Open(BuildDSN(opts)), &opts.PoolOptions)
}

// NewSupervisor creates a supervisor for one MySQL database.
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
