// Package etcd supervises an etcd v3 client. Besides the health probe, an
// optional session lease is kept alive for as long as the client is open;
// when the lease can no longer be renewed the connection is reported lost.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrLeaseLost is reported when the session lease stops being renewed.
var ErrLeaseLost = errors.New("etcd session lease lost")

// healthKey is the key read by Ping, the same one etcdctl endpoint health uses.
const healthKey = "health"

// Client wraps clientv3.Client and implements storage.Client and
// storage.Watcher.
type Client struct {
	client *clientv3.Client
	opts   *Options

	lease     clientv3.LeaseID
	keepAlive <-chan *clientv3.LeaseKeepAliveResponse
	cancel    context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var (
	_ storage.Client  = (*Client)(nil)
	_ storage.Watcher = (*Client)(nil)
)

// NewWithContext creates a client, verifies the cluster answers within ctx
// and, when LeaseTTL is set, grants the session lease.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("etcd options cannot be nil")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	c := &Client{client: cli, opts: opts}
	if err := c.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to reach etcd at %v: %w", opts.Endpoints, err)
	}

	if opts.LeaseTTL > 0 {
		if err := c.grant(ctx); err != nil {
			_ = cli.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) grant(ctx context.Context) error {
	resp, err := c.client.Grant(ctx, c.opts.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to grant etcd lease: %w", err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := c.client.KeepAlive(kaCtx, resp.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to keep etcd lease alive: %w", err)
	}

	c.lease = resp.ID
	c.keepAlive = ch
	c.cancel = cancel
	return nil
}

// NewSupervisor creates a supervisor for one etcd cluster.
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
	return "etcd"
}

// Ping reads the health key within RequestTimeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	_, err := c.client.Get(ctx, healthKey)
	return err
}

// Watch reports the loss of the session lease. It does nothing when the
// lease is disabled.
func (c *Client) Watch(lost func(err error)) {
	if c.keepAlive == nil {
		return
	}
	go func() {
		for range c.keepAlive {
		}
		if !c.closed.Load() {
			lost(fmt.Errorf("%w: %x", ErrLeaseLost, int64(c.lease)))
		}
	}()
}

// Close stops the lease keepalive and closes the client. The lease is left
// to expire on the server.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		if c.client != nil {
			c.closeErr = c.client.Close()
		}
	})
	return c.closeErr
}

// Client returns the underlying etcd client.
func (c *Client) Client() *clientv3.Client {
	return c.client
}

// Lease returns the session lease, or clientv3.NoLease when disabled. Keys
// attached to it disappear when the session is lost.
func (c *Client) Lease() clientv3.LeaseID {
	return c.lease
}

// MemberCount returns the number of cluster members.
func (c *Client) MemberCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	resp, err := c.client.MemberList(ctx)
	if err != nil {
		return 0, err
	}
	return len(resp.Members), nil
}
