// Package pool provides the ants worker pools that run blocking adaptor work,
// health probes and supervisor executors.
package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolNotFound is returned when a group has no pool of the requested type.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolOverload is returned by a non-blocking pool that is full.
	ErrPoolOverload = errors.New("pool is overloaded")
)
