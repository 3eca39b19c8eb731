// Package storage defines the contract shared by supervised resource clients
// and the adaptor that plugs such a client into a supervisor.
//
// A resource package only has to provide a Connector, a function opening a
// verified client. The Lifecycle built from it runs connects and closes on a
// worker pool, probes the client periodically and reports consecutive probe
// failures to the supervisor as a drop:
//
//	sup, err := storage.NewSupervisor("cache", func(ctx context.Context) (*redis.Client, error) {
//	    return redis.NewWithContext(ctx, opts)
//	}, storage.NewOptions())
package storage

import (
	"context"
	"time"
)

// Client is the interface every supervised resource client implements.
type Client interface {
	// Name returns the resource kind, e.g. "redis" or "mysql".
	Name() string

	// Ping performs a lightweight round trip to the backend.
	Ping(ctx context.Context) error

	// Close releases the connection. It must be safe to call more than once.
	Close() error
}

// Watcher is implemented by clients whose driver notices a lost connection on
// its own. Watch is called once, right after the client is opened; lost may
// be called from any goroutine.
type Watcher interface {
	Watch(lost func(err error))
}

// Reconnector is implemented by clients that reconnect on their own. The
// client calls down when the connection is interrupted and up once the
// driver has restored it.
type Reconnector interface {
	WatchConnection(down func(err error), up func())
}

// HealthStatus is the result of one health check.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckHealth pings c and reports the outcome.
func CheckHealth(ctx context.Context, name string, c Client) HealthStatus {
	start := time.Now()
	err := c.Ping(ctx)

	status := HealthStatus{
		Name:    name,
		Healthy: err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
