// Package nats supervises a NATS connection.
//
// With driver reconnects disabled, the default, a lost connection is a drop
// and recovery is left to the supervisor's restart policy. With reconnects
// enabled the driver's disconnect and reconnect notifications are mapped to
// declare-down and declare-up; once the driver gives up the resource stays
// down until it is started again.
package nats

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/nats-io/nats.go"
)

// ErrConnectionClosed is reported when the driver closes the connection on
// its own.
var ErrConnectionClosed = errors.New("nats connection closed")

// Client wraps nats.Conn and implements storage.Client. Depending on the
// reconnect setting it also reports connection loss to the lifecycle.
type Client struct {
	conn *nats.Conn
	opts *Options
	log  core.Logger

	closed atomic.Bool
	lost   atomic.Pointer[func(error)]
	down   atomic.Pointer[func(error)]
	up     atomic.Pointer[func()]
}

var (
	_ storage.Client      = (*Client)(nil)
	_ storage.Watcher     = (*Client)(nil)
	_ storage.Reconnector = (*Client)(nil)
)

// ctxDialer makes the initial connect honour the caller's context. Driver
// reconnects dial without it.
type ctxDialer struct {
	ctx       context.Context
	connected atomic.Bool
	dialer    net.Dialer
}

func (d *ctxDialer) Dial(network, address string) (net.Conn, error) {
	ctx := d.ctx
	if d.connected.Load() {
		ctx = context.Background()
	}
	return d.dialer.DialContext(ctx, network, address)
}

func newClient(opts *Options) *Client {
	return &Client{
		opts: opts,
		log:  logger.With("component", "nats", "url", opts.URL),
	}
}

// natsOptions translates Options into driver options and registers c's
// connection handlers.
func (c *Client) natsOptions(dialer *ctxDialer) []nats.Option {
	o := c.opts
	nopts := []nats.Option{
		nats.Name(o.ClientName),
		nats.SetCustomDialer(dialer),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
		nats.ClosedHandler(c.onClosed),
	}
	if o.PingInterval > 0 {
		nopts = append(nopts, nats.PingInterval(o.PingInterval))
	}
	if o.MaxReconnects == 0 {
		nopts = append(nopts, nats.NoReconnect())
	} else {
		nopts = append(nopts, nats.MaxReconnects(o.MaxReconnects), nats.ReconnectWait(o.ReconnectWait))
	}
	if o.Username != "" {
		nopts = append(nopts, nats.UserInfo(o.Username, o.Password))
	}
	if o.Token != "" {
		nopts = append(nopts, nats.Token(o.Token))
	}
	return nopts
}

// NewWithContext connects and flushes once within ctx.
func NewWithContext(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("nats options cannot be nil")
	}

	c := newClient(opts)
	dialer := &ctxDialer{ctx: ctx, dialer: net.Dialer{Timeout: nats.DefaultTimeout}}
	conn, err := nats.Connect(opts.URL, c.natsOptions(dialer)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", opts.URL, err)
	}
	dialer.connected.Store(true)
	c.conn = conn

	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to flush nats connection: %w", err)
	}
	return c, nil
}

// NewSupervisor creates a supervisor for one NATS connection.
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
	return "nats"
}

// Ping round-trips to the server. A ctx without deadline gets FlushTimeout.
func (c *Client) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FlushTimeout)
		defer cancel()
	}
	return c.conn.FlushWithContext(ctx)
}

// Close closes the connection. Notifications caused by it are suppressed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Stats returns the driver's traffic counters.
func (c *Client) Stats() nats.Statistics {
	return c.conn.Stats()
}

// Watch implements storage.Watcher. It is used when driver reconnects are
// disabled.
func (c *Client) Watch(lost func(err error)) {
	c.lost.Store(&lost)
}

// WatchConnection implements storage.Reconnector. It is used when driver
// reconnects are enabled.
func (c *Client) WatchConnection(down func(err error), up func()) {
	c.down.Store(&down)
	c.up.Store(&up)
}

func (c *Client) reconnects() bool {
	return c.opts.MaxReconnects != 0
}

func (c *Client) onDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	if err == nil {
		err = nats.ErrDisconnected
	}

	if c.reconnects() {
		if fn := c.down.Load(); fn != nil {
			(*fn)(err)
		}
		return
	}
	if fn := c.lost.Load(); fn != nil {
		(*fn)(err)
	}
}

func (c *Client) onReconnect(_ *nats.Conn) {
	if c.closed.Load() || !c.reconnects() {
		return
	}
	if fn := c.up.Load(); fn != nil {
		(*fn)()
	}
}

func (c *Client) onClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	if c.reconnects() {
		c.log.Errorw("Driver gave up reconnecting, resource stays down until started again",
			"error", ErrConnectionClosed)
		return
	}
	if fn := c.lost.Load(); fn != nil {
		(*fn)(ErrConnectionClosed)
	}
}
