// Package sqlite supervises an embedded SQLite database opened through GORM
// with the pure-Go glebarez driver.
package sqlite

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
)

// Client is the supervised SQLite handle.
type Client = sqldb.Client

// NewWithContext opens the database and verifies it within ctx.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("sqlite options cannot be nil")
	}
	return sqldb.Open(ctx, "sqlite", sqlite.Open(opts.Path), &opts.PoolOptions)
}

// NewSupervisor creates a supervisor for one SQLite database.
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
