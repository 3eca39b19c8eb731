package sqlite

import (
	"fmt"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Options defines configuration options for an embedded SQLite database.
type Options struct {
	// Path is the database file, or a DSN such as "file::memory:?cache=shared".
	Path              string `json:"path" mapstructure:"path" validate:"required"`
	sqldb.PoolOptions `mapstructure:",squash"`

	Lifecycle *storage.Options `json:"lifecycle" mapstructure:"lifecycle" validate:"-"`
}

// NewOptions creates a new Options object with default values. SQLite
// serializes writers, so the pool defaults to a single connection.
func NewOptions() *Options {
	pool := sqldb.NewPoolOptions()
	pool.MaxOpenConnections = 1
	pool.MaxIdleConnections = 1

	return &Options{
		Path:        "lifeline.db",
		PoolOptions: pool,
		Lifecycle:   storage.NewOptions(),
	}
}

// String returns a compact representation for logs.
func (o *Options) String() string {
	return fmt.Sprintf("SQLite{path=%s}", o.Path)
}

// LifecycleOptions returns the connect and probe settings.
func (o *Options) LifecycleOptions() *storage.Options {
	return o.Lifecycle
}

// Complete fills lifecycle defaults.
func (o *Options) Complete() error {
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	return o.Lifecycle.Complete()
}

// Validate checks if the options are valid.
func (o *Options) Validate() error {
	var errs []error
	if err := component.ValidateStruct(o); err != nil {
		errs = append(errs, err)
	}
	if o.Lifecycle != nil {
		if err := o.Lifecycle.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if agg := utilerrors.NewAggregate(errs); agg != nil {
		return storage.ErrInvalidConfig.WithMessage("invalid sqlite options").WithCause(agg)
	}
	return nil
}

// AddFlags adds flags for SQLite options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.Path, namePrefix+"path", o.Path, "SQLite database file or DSN")
	o.PoolOptions.AddFlags(fs, namePrefix)
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	o.Lifecycle.AddFlags(fs, namePrefix+"lifecycle.")
}
