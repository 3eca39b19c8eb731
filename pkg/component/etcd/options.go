package etcd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// PasswordEnv is read when no password is configured.
const PasswordEnv = "ETCD_PASSWORD"

// Options defines configuration options for Etcd.
type Options struct {
	Endpoints      []string      `json:"endpoints" mapstructure:"endpoints" validate:"required,min=1,dive,required"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"password" mapstructure:"password"`
	DialTimeout    time.Duration `json:"dial-timeout" mapstructure:"dial-timeout" validate:"gt=0"`
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout" validate:"gt=0"`
	// LeaseTTL is the TTL in seconds of the session lease kept alive while
	// the client is open. Losing the lease is reported as a drop. Zero
	// disables the lease.
	LeaseTTL int64 `json:"lease-ttl" mapstructure:"lease-ttl" validate:"gte=0"`

	Lifecycle *storage.Options `json:"lifecycle" mapstructure:"lifecycle" validate:"-"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Endpoints:      []string{"127.0.0.1:2379"},
		DialTimeout:    5 * time.Second,
		RequestTimeout: 2 * time.Second,
		LeaseTTL:       60,
		Lifecycle:      storage.NewOptions(),
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
	return fmt.Sprintf("Etcd{endpoints=%v, user=%s, password=%s}",
		o.Endpoints, o.Username, component.Redact(o.Password))
}

// LifecycleOptions returns the connect and probe settings.
func (o *Options) LifecycleOptions() *storage.Options {
	return o.Lifecycle
}

// Complete fills the password from the environment and lifecycle defaults.
func (o *Options) Complete() error {
	component.PasswordFromEnv(&o.Password, PasswordEnv)
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
		return storage.ErrInvalidConfig.WithMessage("invalid etcd options").WithCause(agg)
	}
	return nil
}

// AddFlags adds flags for Etcd options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringSliceVar(&o.Endpoints, namePrefix+"endpoints", o.Endpoints, "Etcd endpoints")
	fs.StringVar(&o.Username, namePrefix+"username", o.Username, "Etcd username")
	fs.StringVar(&o.Password, namePrefix+"password", o.Password, "Etcd password (prefer the "+PasswordEnv+" env var)")
	fs.DurationVar(&o.DialTimeout, namePrefix+"dial-timeout", o.DialTimeout, "Etcd dial timeout")
	fs.DurationVar(&o.RequestTimeout, namePrefix+"request-timeout", o.RequestTimeout, "Etcd request timeout")
	fs.Int64Var(&o.LeaseTTL, namePrefix+"lease-ttl", o.LeaseTTL, "Etcd session lease TTL in seconds, 0 disables the lease")
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	o.Lifecycle.AddFlags(fs, namePrefix+"lifecycle.")
}
