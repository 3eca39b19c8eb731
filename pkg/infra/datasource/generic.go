package datasource

import (
	"fmt"

	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
)

// TypedGetter provides type-safe access to the resources of one storage type.
//
//	client, err := mgr.Redis().Get("cache")
type TypedGetter[C storage.Client] struct {
	mgr         *Manager
	storageType StorageType
}

// NewTypedGetter creates a getter for resources of storageType whose client
// type is C.
func NewTypedGetter[C storage.Client](mgr *Manager, storageType StorageType) *TypedGetter[C] {
	return &TypedGetter[C]{
		mgr:         mgr,
		storageType: storageType,
	}
}

// Supervisor returns the supervisor registered under name.
func (g *TypedGetter[C]) Supervisor(name string) (*supervisor.Supervisor[C], error) {
	e, err := g.mgr.lookup(name)
	if err != nil {
		return nil, err
	}
	if e.storageType != g.storageType {
		return nil, storage.ErrClientNotFound.WithMessage(
			fmt.Sprintf("resource '%s' is %s, not %s", name, e.storageType, g.storageType))
	}
	s, ok := e.typed.(*supervisor.Supervisor[C])
	if !ok {
		var zero C
		return nil, fmt.Errorf("type assertion failed for %s '%s': expected %T client", g.storageType, name, zero)
	}
	return s, nil
}

// Get returns the client of the resource registered under name. It fails
// with storage.ErrNotConnected while the resource is not up.
func (g *TypedGetter[C]) Get(name string) (C, error) {
	var zero C
	s, err := g.Supervisor(name)
	if err != nil {
		return zero, err
	}
	if !s.IsUp() {
		return zero, storage.ErrNotConnected.WithMessage(
			fmt.Sprintf("%s '%s' is %s", g.storageType, name, s.State()))
	}
	return s.Client(), nil
}

// MustGet is like Get but panics on error.
func (g *TypedGetter[C]) MustGet(name string) C {
	client, err := g.Get(name)
	if err != nil {
		panic(fmt.Sprintf("failed to get %s instance '%s': %v", g.storageType, name, err))
	}
	return client
}
