package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/sqldb"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// PasswordEnv is read when no password is configured.
const PasswordEnv = "POSTGRES_PASSWORD"

// Options defines configuration options for PostgreSQL.
type Options struct {
	Host              string `json:"host" mapstructure:"host" validate:"required"`
	Port              int    `json:"port" mapstructure:"port" validate:"gt=0,lte=65535"`
	Username          string `json:"username" mapstructure:"username" validate:"required"`
	Password          string `json:"password" mapstructure:"password"`
	Database          string `json:"database" mapstructure:"database" validate:"required"`
	SSLMode           string `json:"ssl-mode" mapstructure:"ssl-mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	sqldb.PoolOptions `mapstructure:",squash"`

	Lifecycle *storage.Options `json:"lifecycle" mapstructure:"lifecycle" validate:"-"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:        "127.0.0.1",
		Port:        5432,
		Username:    "postgres",
		Database:    "postgres",
		SSLMode:     "disable",
		PoolOptions: sqldb.NewPoolOptions(),
		Lifecycle:   storage.NewOptions(),
	}
}

// MarshalJSON implements json.Marshaler with password redaction.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	c := plain(*o)
	c.Password = component.Redact(o.Password)
	return json.Marshal(&c)
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	return fmt.Sprintf("PostgreSQL{host=%s, port=%d, user=%s, password=%s, database=%s, sslmode=%s}",
		o.Host, o.Port, o.Username, component.Redact(o.Password), o.Database, o.SSLMode)
}

// LifecycleOptions returns the connect and probe settings.
func (o *Options) LifecycleOptions() *storage.Options {
	return o.Lifecycle
}

// Complete fills the password from the environment and lifecycle defaults.
func (o *Options) Complete() error {
	component.PasswordFromEnv(&o.Password, PasswordEnv)
	if o.SSLMode == "" {
		o.SSLMode = "disable"
	}
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
		return storage.ErrInvalidConfig.WithMessage("invalid postgres options").WithCause(agg)
	}
	return nil
}

// AddFlags adds flags for PostgreSQL options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.Host, namePrefix+"host", o.Host, "PostgreSQL host")
	fs.IntVar(&o.Port, namePrefix+"port", o.Port, "PostgreSQL port")
	fs.StringVar(&o.Username, namePrefix+"username", o.Username, "PostgreSQL username")
	fs.StringVar(&o.Password, namePrefix+"password", o.Password, "PostgreSQL password (prefer the "+PasswordEnv+" env var)")
	fs.StringVar(&o.Database, namePrefix+"database", o.Database, "PostgreSQL database")
	fs.StringVar(&o.SSLMode, namePrefix+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode")
	o.PoolOptions.AddFlags(fs, namePrefix)
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	o.Lifecycle.AddFlags(fs, namePrefix+"lifecycle.")
}
