package nats

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
const PasswordEnv = "NATS_PASSWORD"

// Options defines configuration options for a NATS connection.
type Options struct {
	// URL is a comma separated list of server URLs.
	URL        string `json:"url" mapstructure:"url" validate:"required"`
	ClientName string `json:"client-name" mapstructure:"client-name"`
	Username   string `json:"username" mapstructure:"username" validate:"required_with=Password"`
	Password   string `json:"password" mapstructure:"password"`
	Token      string `json:"token" mapstructure:"token" validate:"excluded_with=Username"`

	// MaxReconnects is the number of reconnect attempts made by the driver
	// itself. Zero disables driver reconnects, so a lost connection is a
	// drop handled by the supervisor. -1 reconnects forever.
	MaxReconnects int           `json:"max-reconnects" mapstructure:"max-reconnects" validate:"gte=-1"`
	ReconnectWait time.Duration `json:"reconnect-wait" mapstructure:"reconnect-wait" validate:"gte=0"`
	PingInterval  time.Duration `json:"ping-interval" mapstructure:"ping-interval" validate:"gte=0"`
	FlushTimeout  time.Duration `json:"flush-timeout" mapstructure:"flush-timeout" validate:"gt=0"`

	Lifecycle *storage.Options `json:"lifecycle" mapstructure:"lifecycle" validate:"-"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		URL:           "nats://127.0.0.1:4222",
		ClientName:    "lifeline",
		MaxReconnects: 0,
		ReconnectWait: 2 * time.Second,
		PingInterval:  20 * time.Second,
		FlushTimeout:  2 * time.Second,
		Lifecycle:     storage.NewOptions(),
	}
}

// MarshalJSON implements json.Marshaler with credential redaction.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	c := plain(*o)
	c.Password = component.Redact(o.Password)
	c.Token = component.Redact(o.Token)
	return json.Marshal(&c)
}

// String returns a string representation with credentials redacted.
func (o *Options) String() string {
	return fmt.Sprintf("NATS{url=%s, user=%s, password=%s, token=%s}",
		o.URL, o.Username, component.Redact(o.Password), component.Redact(o.Token))
}

// LifecycleOptions returns the connect and probe settings.
func (o *Options) LifecycleOptions() *storage.Options {
	return o.Lifecycle
}

// Complete fills the password from the environment and lifecycle defaults.
func (o *Options) Complete() error {
	component.PasswordFromEnv(&o.Password, PasswordEnv)
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 2 * time.Second
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
		return storage.ErrInvalidConfig.WithMessage("invalid nats options").WithCause(agg)
	}
	return nil
}

// AddFlags adds flags for NATS options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.URL, namePrefix+"url", o.URL, "NATS server URLs, comma separated")
	fs.StringVar(&o.ClientName, namePrefix+"client-name", o.ClientName, "Connection name reported to the server")
	fs.StringVar(&o.Username, namePrefix+"username", o.Username, "NATS username")
	fs.StringVar(&o.Password, namePrefix+"password", o.Password, "NATS password (prefer the "+PasswordEnv+" env var)")
	fs.StringVar(&o.Token, namePrefix+"token", o.Token, "NATS authentication token")
	fs.IntVar(&o.MaxReconnects, namePrefix+"max-reconnects", o.MaxReconnects, "NATS driver reconnect attempts (0 lets the supervisor handle losses, -1 is unlimited)")
	fs.DurationVar(&o.ReconnectWait, namePrefix+"reconnect-wait", o.ReconnectWait, "NATS wait between driver reconnect attempts")
	fs.DurationVar(&o.PingInterval, namePrefix+"ping-interval", o.PingInterval, "NATS client ping interval")
	fs.DurationVar(&o.FlushTimeout, namePrefix+"flush-timeout", o.FlushTimeout, "NATS flush timeout used by health checks")
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	o.Lifecycle.AddFlags(fs, namePrefix+"lifecycle.")
}
