// Package mongodb supervises a MongoDB client. The driver keeps its own
// topology monitor; start-up waits for server selection with a ping and the
// health probe reports a lost deployment as a drop.
package mongodb

import (
	"context"
	"fmt"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client wraps mongo.Client and implements storage.Client.
//
//	coll := client.Database().Collection("users")
//	_, err := coll.InsertOne(ctx, bson.M{"name": "John"})
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *Options
}

var _ storage.Client = (*Client)(nil)

// clientOptions translates Options into driver options.
func clientOptions(opts *Options) *mongoopts.ClientOptions {
	co := mongoopts.Client().ApplyURI(BuildURI(opts))
	if opts.MaxPoolSize > 0 {
		co.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		co.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.MaxConnIdleTime > 0 {
		co.SetMaxConnIdleTime(opts.MaxConnIdleTime)
	}
	if opts.ConnectTimeout > 0 {
		co.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.SocketTimeout > 0 {
		co.SetSocketTimeout(opts.SocketTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		co.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}
	if opts.Direct {
		co.SetDirect(true)
	}
	return co
}

// NewWithContext connects and waits for a primary within ctx.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options cannot be nil")
	}

	client, err := mongo.Connect(ctx, clientOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	c := &Client{client: client, opts: opts}
	if opts.Database != "" {
		c.database = client.Database(opts.Database)
	}
	return c, nil
}

// NewSupervisor creates a supervisor for one MongoDB deployment.
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

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "mongodb"
}

// Ping checks if the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects, waiting up to DisconnectTimeout for in-use
// connections to be returned.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DisconnectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Client returns the underlying driver client.
func (c *Client) Client() *mongo.Client {
	return c.client
}

// Database returns the configured database, or nil when none is set.
func (c *Client) Database() *mongo.Database {
	return c.database
}

// DatabaseByName returns a database other than the default.
func (c *Client) DatabaseByName(name string) *mongo.Database {
	return c.client.Database(name)
}
