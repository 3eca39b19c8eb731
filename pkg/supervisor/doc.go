// Package supervisor implements a lifecycle supervisor for a single managed
// resource connection such as a database, cache or message-broker client.
//
// Callers never drive the client library directly. They ask the supervisor to
// start up, shut down, restart or terminate the resource, and the supervisor
// owns the up/down state, collapses concurrent callers of the same action onto
// one handler invocation, guards every invocation with an optional deadline,
// turns unsolicited losses of service into drops, and restarts dropped
// resources with exponential backoff.
//
// What starting up or shutting down means is supplied by an Adaptor: four
// optional handler functions, each completing through a callback.
//
// Example usage:
//
//	opts := supervisor.NewOptions()
//	opts.AutoRestart = true
//
//	sup, err := supervisor.New("cache", supervisor.Adaptor[*redis.Client]{
//	    StartUp: func(s *supervisor.Supervisor[*redis.Client], _ *redis.Client, done supervisor.Callback[*redis.Client]) {
//	        go func() {
//	            c, err := redis.NewWithContext(context.Background(), opts)
//	            done(err, c)
//	        }()
//	    },
//	}, supervisor.WithOptions(opts))
//	if err != nil {
//	    return err
//	}
//
//	client, err := sup.StartUpContext(ctx)
//
// All state is mutated on a per-supervisor serial executor. Handlers, callbacks
// and event handlers run on that executor and must not block it.
//
// Options passed to WithOptions are used as given, so start from NewOptions
// rather than a struct literal: a zero MaxRestartAttempts means a drop is
// never restarted.
package supervisor
