package supervisor

import "context"

// Managed is the type-erased view of a supervisor used by registries that
// hold resources of different client types.
type Managed interface {
	Name() string
	// Start brings the resource up and waits for the result.
	Start(ctx context.Context) error
	// Stop shuts the resource down and waits for the result.
	Stop(ctx context.Context) error
	// Cycle restarts the resource and waits for the result.
	Cycle(ctx context.Context) error
	// Kill terminates the resource and waits for it.
	Kill(ctx context.Context) error
	Dropped()
	IsUp() bool
	Snapshot() Snapshot
	Subscribe(h EventHandler) (unsubscribe func())
	Reconfigure(opts *Options) error
}

var _ Managed = (*Supervisor[any])(nil)

// StartUpContext is the blocking form of StartUp. It must not be called from a
// handler, callback or event handler.
func (s *Supervisor[C]) StartUpContext(ctx context.Context) (C, error) {
	return s.await(ctx, s.StartUp)
}

// ShutDownContext is the blocking form of ShutDown.
func (s *Supervisor[C]) ShutDownContext(ctx context.Context) error {
	_, err := s.await(ctx, s.ShutDown)
	return err
}

// RestartContext is the blocking form of Restart.
func (s *Supervisor[C]) RestartContext(ctx context.Context) (C, error) {
	return s.await(ctx, s.Restart)
}

// TerminateContext is the blocking form of Terminate.
func (s *Supervisor[C]) TerminateContext(ctx context.Context) error {
	_, err := s.await(ctx, s.Terminate)
	return err
}

// Start implements Managed.
func (s *Supervisor[C]) Start(ctx context.Context) error {
	_, err := s.StartUpContext(ctx)
	return err
}

// Stop implements Managed.
func (s *Supervisor[C]) Stop(ctx context.Context) error {
	return s.ShutDownContext(ctx)
}

// Cycle implements Managed.
func (s *Supervisor[C]) Cycle(ctx context.Context) error {
	_, err := s.RestartContext(ctx)
	return err
}

// Kill implements Managed.
func (s *Supervisor[C]) Kill(ctx context.Context) error {
	return s.TerminateContext(ctx)
}

type result[C any] struct {
	client C
	err    error
}

func (s *Supervisor[C]) await(ctx context.Context, action func(Callback[C])) (C, error) {
	ch := make(chan result[C], 1)
	action(func(err error, client C) {
		ch <- result[C]{client: client, err: err}
	})

	select {
	case r := <-ch:
		return r.client, r.err
	case <-ctx.Done():
		var zero C
		return zero, ctx.Err()
	}
}
