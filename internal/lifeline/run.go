package lifeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kart-io/lifeline/pkg/app"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/infra/config"
	"github.com/kart-io/lifeline/pkg/infra/datasource"
	"github.com/kart-io/lifeline/pkg/infra/pool"
	"github.com/kart-io/lifeline/pkg/observability/metrics"
	"github.com/kart-io/lifeline/pkg/observability/tracing"
	logopts "github.com/kart-io/lifeline/pkg/options/logger"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	appName        = "lifeline"
	supervisorKey  = "supervisor"
	logKey         = "log"
	readHeaderWait = 10 * time.Second
)

// NewApp creates the lifeline command.
func NewApp() *app.App {
	opts := NewOptions()
	v := viper.New()
	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Supervise resource connections"),
		app.WithDescription(`lifeline keeps connections to databases, caches and brokers up.
It restarts dropped resources with exponential backoff and serves their
state, health and metrics over HTTP.`),
		app.WithOptions(opts),
		app.WithViper(v),
		app.WithRunFunc(func(ctx context.Context) error {
			return Run(ctx, opts, v)
		}),
	)
}

// Daemon holds the running parts of the process.
type Daemon struct {
	opts     *Options
	pools    *pool.Group
	tracer   *tracing.Provider
	exporter *metrics.Exporter
	mgr      *datasource.Manager
}

// NewDaemon builds pools, observers and the resource registry from opts.
// Nothing is started.
func NewDaemon(opts *Options) (*Daemon, error) {
	pools, err := pool.NewGroup(opts.Pool)
	if err != nil {
		return nil, fmt.Errorf("create pools: %w", err)
	}

	d := &Daemon{opts: opts, pools: pools}
	if err := d.init(); err != nil {
		pools.Release()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) init() error {
	var err error
	if d.tracer, err = tracing.NewProvider(d.opts.Tracing, nil); err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}
	if d.exporter, err = metrics.NewExporter(); err != nil {
		return fmt.Errorf("create metrics exporter: %w", err)
	}
	if err := d.exporter.RegisterPools(d.pools); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	d.mgr = datasource.NewManager(datasource.WithHealthRunner(d.pools.Runner(pool.HealthCheckPool)))
	d.mgr.Observe(func(t datasource.StorageType, ev supervisor.Event) {
		d.exporter.Observe(string(t), ev)
	})
	if d.opts.Tracing.Enabled {
		spans := tracing.NewObserver(d.tracer.Tracer(appName))
		d.mgr.Observe(func(t datasource.StorageType, ev supervisor.Event) {
			spans.Observe(string(t), ev)
		})
	}

	return d.opts.Resources.register(d.mgr,
		storage.WithRunner(d.pools.Runner(pool.ConnectPool)),
		storage.WithProbeRunner(d.pools.Runner(pool.HealthCheckPool)),
		storage.WithSupervisorOptions(
			supervisor.WithOptions(d.opts.Supervisor),
			supervisor.WithSpawn(d.pools.Runner(pool.ExecutorPool)),
		),
	)
}

// Manager returns the resource registry.
func (d *Daemon) Manager() *datasource.Manager {
	return d.mgr
}

// Handler returns the status API.
func (d *Daemon) Handler() http.Handler {
	return NewRouter(d.mgr, d.opts.HTTP, d.exporter.Handler())
}

// Start brings every resource up within the start timeout.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.StartTimeout)
	defer cancel()
	return d.mgr.StartAll(ctx)
}

// Shutdown stops every resource, flushes spans and releases the pools.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var errs []error
	if err := d.mgr.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := d.pools.ReleaseTimeout(d.opts.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}

// Run starts the daemon and blocks until ctx is cancelled or the API fails.
func Run(ctx context.Context, opts *Options, v *viper.Viper) error {
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Flush() }()

	d, err := NewDaemon(opts)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return errors.Join(err, d.Shutdown(context.Background()))
	}
	logger.Infow("Resources started", "registered", d.mgr.ListRegistered())

	if opts.WatchConfig && v.ConfigFileUsed() != "" {
		w := config.NewWatcher(v)
		config.WatchSupervisorOptions(w, supervisorKey, d.mgr)
		logReloader := config.NewReloadableSubscriber(logopts.NewReloader(opts.Log), logKey, func() any {
			return logopts.NewOptions()
		})
		w.Subscribe(logKey, logReloader.Handler())
		w.Start()
		defer w.Stop()
		logger.Infow("Watching config file", "file", v.ConfigFileUsed())
	}

	ln, err := net.Listen("tcp", opts.HTTP.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("listen on %s: %w", opts.HTTP.Addr, err), d.Shutdown(context.Background()))
	}
	srv := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: readHeaderWait}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Infow("Status API listening", "addr", ln.Addr().String())

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		errs = append(errs, fmt.Errorf("status API: %w", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown status API: %w", err))
	}
	if err := d.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
