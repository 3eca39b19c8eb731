package storage

import (
	"fmt"
	"time"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/spf13/pflag"
)

// Options controls how a client is opened and watched.
type Options struct {
	// ConnectTimeout bounds one connect attempt. Keep it below the supervisor's
	// action timeout.
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout" validate:"gt=0"`
	// ProbeInterval is the period of the health probe. Zero disables probing.
	ProbeInterval time.Duration `json:"probe-interval" mapstructure:"probe-interval" validate:"gte=0"`
	// ProbeTimeout bounds one probe.
	ProbeTimeout time.Duration `json:"probe-timeout" mapstructure:"probe-timeout" validate:"gt=0"`
	// ProbeFailures is the number of consecutive failed probes reported as a drop.
	ProbeFailures int `json:"probe-failures" mapstructure:"probe-failures" validate:"gte=1"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		ConnectTimeout: 3 * time.Second,
		ProbeInterval:  10 * time.Second,
		ProbeTimeout:   3 * time.Second,
		ProbeFailures:  3,
	}
}

// Complete fills unset fields with defaults.
func (o *Options) Complete() error {
	d := NewOptions()
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.ProbeFailures == 0 {
		o.ProbeFailures = d.ProbeFailures
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() error {
	if err := component.ValidateStruct(o); err != nil {
		return ErrInvalidConfig.WithCause(err)
	}
	return nil
}

// CheckActionTimeout reports an error unless a connect attempt ends before an
// action deadline of actionTimeout. A zero actionTimeout disables the check.
func (o *Options) CheckActionTimeout(actionTimeout time.Duration) error {
	if actionTimeout > 0 && o.ConnectTimeout >= actionTimeout {
		return ErrInvalidConfig.WithMessage(fmt.Sprintf(
			"connect-timeout %s must be below the action timeout %s", o.ConnectTimeout, actionTimeout))
	}
	return nil
}

// AddFlags adds flags for the options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.DurationVar(&o.ConnectTimeout, namePrefix+"connect-timeout", o.ConnectTimeout, "Timeout of one connect attempt")
	fs.DurationVar(&o.ProbeInterval, namePrefix+"probe-interval", o.ProbeInterval, "Health probe period (0 disables probing)")
	fs.DurationVar(&o.ProbeTimeout, namePrefix+"probe-timeout", o.ProbeTimeout, "Timeout of one health probe")
	fs.IntVar(&o.ProbeFailures, namePrefix+"probe-failures", o.ProbeFailures, "Consecutive failed probes treated as a drop")
}

// String returns a compact representation for logs.
func (o *Options) String() string {
	return fmt.Sprintf("Lifecycle{connect-timeout=%s, probe-interval=%s, probe-failures=%d}",
		o.ConnectTimeout, o.ProbeInterval, o.ProbeFailures)
}
