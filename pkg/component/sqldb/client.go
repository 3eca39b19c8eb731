// Package sqldb holds the GORM client shared by the SQL resources.
package sqldb

import (
	"context"
	"fmt"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"gorm.io/gorm"
)

// Client wraps gorm.DB and implements storage.Client.
//
//	db := client.DB()
//	db.AutoMigrate(&User{})
type Client struct {
	kind string
	db   *gorm.DB
}

var _ storage.Client = (*Client)(nil)

// Open opens a database through dialector, applies the pool settings and
// verifies connectivity within ctx.
func Open(ctx context.Context, kind string, dialector gorm.Dialector, opts *PoolOptions) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(kind, opts.gormLevel(), opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", kind, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	}
	if opts.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	}
	if opts.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
	}
	if opts.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.MaxIdleTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", kind, err)
	}

	return &Client{kind: kind, db: db}, nil
}

// Name returns the database kind.
func (c *Client) Name() string {
	return c.kind
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the GORM handle.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Stats returns connection pool statistics.
func (c *Client) Stats() (PoolStats, error) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return PoolStats{}, err
	}
	s := sqlDB.Stats()
	return PoolStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
	}, nil
}

// PoolStats is a subset of sql.DBStats for status output.
type PoolStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}
