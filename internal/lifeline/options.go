// Package lifeline is the lifeline daemon: it supervises the resources
// enabled in its configuration and serves their status over HTTP.
package lifeline

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/etcd"
	"github.com/kart-io/lifeline/pkg/component/mongodb"
	"github.com/kart-io/lifeline/pkg/component/mysql"
	"github.com/kart-io/lifeline/pkg/component/nats"
	"github.com/kart-io/lifeline/pkg/component/postgres"
	"github.com/kart-io/lifeline/pkg/component/redis"
	"github.com/kart-io/lifeline/pkg/component/sqlite"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/infra/pool"
	"github.com/kart-io/lifeline/pkg/observability/tracing"
	"github.com/kart-io/lifeline/pkg/options"
	logopts "github.com/kart-io/lifeline/pkg/options/logger"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Options is the configuration of the daemon.
type Options struct {
	Log        *logopts.Options    `json:"log" mapstructure:"log"`
	Supervisor *supervisor.Options `json:"supervisor" mapstructure:"supervisor"`
	Pool       *pool.GroupConfig   `json:"pool" mapstructure:"pool"`
	HTTP       *HTTPOptions        `json:"http" mapstructure:"http"`
	Tracing    *tracing.Options    `json:"tracing" mapstructure:"tracing"`
	Resources  *ResourceOptions    `json:"resources" mapstructure:"resources"`

	// StartTimeout bounds bringing every resource up at boot.
	StartTimeout time.Duration `json:"start-timeout" mapstructure:"start-timeout"`
	// ShutdownTimeout bounds stopping the API and every resource.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// WatchConfig reloads the supervisor section when the config file changes.
	WatchConfig bool `json:"watch-config" mapstructure:"watch-config"`
}

// HTTPOptions configures the status API.
type HTTPOptions struct {
	Addr string `json:"addr" mapstructure:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `json:"mode" mapstructure:"mode"`
	// ActionTimeout bounds a start, stop or restart requested over the API.
	ActionTimeout time.Duration `json:"action-timeout" mapstructure:"action-timeout"`
	// HealthTimeout bounds the pings of /readyz.
	HealthTimeout time.Duration `json:"health-timeout" mapstructure:"health-timeout"`
}

// Resource enables one resource of a kind under a name.
type Resource[T component.ConfigOptions] struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Name    string `json:"name" mapstructure:"name"`
	Options T      `json:"options" mapstructure:",squash"`
}

func newResource[T component.ConfigOptions](name string, opts T) *Resource[T] {
	return &Resource[T]{Name: name, Options: opts}
}

func (r *Resource[T]) addFlags(fs *pflag.FlagSet, prefix string) {
	fs.BoolVar(&r.Enabled, prefix+"enabled", r.Enabled, "Supervise this resource")
	fs.StringVar(&r.Name, prefix+"name", r.Name, "Name the resource is registered under")
	r.Options.AddFlags(fs, prefix)
}

func (r *Resource[T]) complete() error {
	if !r.Enabled {
		return nil
	}
	return r.Options.Complete()
}

func (r *Resource[T]) validate(actionTimeout time.Duration) error {
	if !r.Enabled {
		return nil
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := r.Options.Validate(); err != nil {
		return err
	}
	if lo, ok := any(r.Options).(lifecycleOptions); ok && lo.LifecycleOptions() != nil {
		return lo.LifecycleOptions().CheckActionTimeout(actionTimeout)
	}
	return nil
}

// ResourceOptions lists the resources the daemon can supervise.
type ResourceOptions struct {
	MySQL    *Resource[*mysql.Options]    `json:"mysql" mapstructure:"mysql"`
	Postgres *Resource[*postgres.Options] `json:"postgres" mapstructure:"postgres"`
	SQLite   *Resource[*sqlite.Options]   `json:"sqlite" mapstructure:"sqlite"`
	Redis    *Resource[*redis.Options]    `json:"redis" mapstructure:"redis"`
	MongoDB  *Resource[*mongodb.Options]  `json:"mongodb" mapstructure:"mongodb"`
	Etcd     *Resource[*etcd.Options]     `json:"etcd" mapstructure:"etcd"`
	NATS     *Resource[*nats.Options]     `json:"nats" mapstructure:"nats"`
}

type resourceOptions interface {
	addFlags(fs *pflag.FlagSet, prefix string)
	complete() error
	validate(actionTimeout time.Duration) error
}

type lifecycleOptions interface {
	LifecycleOptions() *storage.Options
}

func (o *ResourceOptions) each(fn func(kind string, r resourceOptions) error) error {
	var errs []error
	for _, kr := range []struct {
		kind string
		r    resourceOptions
	}{
		{"mysql", o.MySQL},
		{"postgres", o.Postgres},
		{"sqlite", o.SQLite},
		{"redis", o.Redis},
		{"mongodb", o.MongoDB},
		{"etcd", o.Etcd},
		{"nats", o.NATS},
	} {
		if err := fn(kr.kind, kr.r); err != nil {
			errs = append(errs, fmt.Errorf("resources.%s: %w", kr.kind, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// NewOptions creates the daemon options with every resource disabled.
func NewOptions() *Options {
	return &Options{
		Log:        logopts.NewOptions(),
		Supervisor: supervisor.NewOptions(),
		Pool:       pool.DefaultGroupConfig(),
		HTTP: &HTTPOptions{
			Addr:          ":8090",
			Mode:          "release",
			ActionTimeout: 30 * time.Second,
			HealthTimeout: 3 * time.Second,
		},
		Tracing: tracing.NewOptions(),
		Resources: &ResourceOptions{
			MySQL:    newResource("mysql", mysql.NewOptions()),
			Postgres: newResource("postgres", postgres.NewOptions()),
			SQLite:   newResource("sqlite", sqlite.NewOptions()),
			Redis:    newResource("redis", redis.NewOptions()),
			MongoDB:  newResource("mongodb", mongodb.NewOptions()),
			Etcd:     newResource("etcd", etcd.NewOptions()),
			NATS:     newResource("nats", nats.NewOptions()),
		},
		StartTimeout:    time.Minute,
		ShutdownTimeout: 30 * time.Second,
		WatchConfig:     true,
	}
}

// AddFlags implements app.CliOptions.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs, options.Join("log"))
	o.Supervisor.AddFlags(fs, options.Join("supervisor"))
	o.Tracing.AddFlags(fs, options.Join("tracing"))

	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "Listen address of the status API")
	fs.StringVar(&o.HTTP.Mode, "http.mode", o.HTTP.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.HTTP.ActionTimeout, "http.action-timeout", o.HTTP.ActionTimeout, "Timeout of actions requested over the API")
	fs.DurationVar(&o.HTTP.HealthTimeout, "http.health-timeout", o.HTTP.HealthTimeout, "Timeout of readiness pings")

	_ = o.Resources.each(func(kind string, r resourceOptions) error {
		r.addFlags(fs, options.Join("resources", kind))
		return nil
	})

	fs.DurationVar(&o.StartTimeout, "start-timeout", o.StartTimeout, "Timeout for bringing every resource up")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Timeout for stopping every resource")
	fs.BoolVar(&o.WatchConfig, "watch-config", o.WatchConfig, "Reload supervisor options when the config file changes")
}

// Complete implements app.CliOptions.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Supervisor.Complete(); err != nil {
		return err
	}
	if err := o.Tracing.Complete(); err != nil {
		return err
	}
	return o.Resources.each(func(_ string, r resourceOptions) error {
		return r.complete()
	})
}

// Validate implements app.CliOptions.
func (o *Options) Validate() error {
	var errs []error
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if err := o.Supervisor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("supervisor: %w", err))
	}
	if err := o.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.HTTP.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr is required"))
	}
	switch o.HTTP.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode must be debug, release or test, got %q", o.HTTP.Mode))
	}
	if o.StartTimeout <= 0 || o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("start-timeout and shutdown-timeout must be positive"))
	}
	if err := o.Resources.each(func(_ string, r resourceOptions) error {
		return r.validate(o.Supervisor.ActionTimeout)
	}); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
