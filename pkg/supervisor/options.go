package supervisor

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

// StartFailurePolicy decides what a start-up failure means when the resource
// is already up by the time the handler reports it.
type StartFailurePolicy string

const (
	// StartFailureDrop treats the failure as a drop.
	StartFailureDrop StartFailurePolicy = "drop"
	// StartFailureReport delivers the failure to callers and leaves the state alone.
	StartFailureReport StartFailurePolicy = "report"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options configures a supervisor.
type Options struct {
	// AutoRestart schedules a restart after every drop.
	AutoRestart bool `json:"auto-restart" mapstructure:"auto-restart"`
	// ActionTimeout bounds every handler invocation. Zero disables it.
	ActionTimeout time.Duration `json:"action-timeout" mapstructure:"action-timeout" validate:"gte=0"`
	// BackoffCoefficient multiplies the restart delay after each scheduled restart.
	BackoffCoefficient float64 `json:"backoff-coefficient" mapstructure:"backoff-coefficient" validate:"gt=1"`
	// RestartDelay is the base delay before the first automatic restart.
	RestartDelay time.Duration `json:"restart-delay" mapstructure:"restart-delay" validate:"gte=0"`
	// MaxRestartDelay caps the grown delay. Zero leaves it uncapped.
	MaxRestartDelay time.Duration `json:"max-restart-delay" mapstructure:"max-restart-delay" validate:"gte=0"`
	// MaxRestartAttempts bounds consecutive restart attempts; -1 is unbounded.
	MaxRestartAttempts int `json:"max-restart-attempts" mapstructure:"max-restart-attempts" validate:"gte=-1"`
	// StartFailurePolicy is "drop" or "report".
	StartFailurePolicy StartFailurePolicy `json:"start-failure-policy" mapstructure:"start-failure-policy" validate:"oneof=drop report"`
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		AutoRestart:        false,
		ActionTimeout:      5 * time.Second,
		BackoffCoefficient: 1.2,
		RestartDelay:       time.Second,
		MaxRestartDelay:    0,
		MaxRestartAttempts: -1,
		StartFailurePolicy: StartFailureDrop,
	}
}

// Complete fills unset fields that have no meaningful zero value.
func (o *Options) Complete() error {
	if o.StartFailurePolicy == "" {
		o.StartFailurePolicy = StartFailureDrop
	}
	if o.BackoffCoefficient == 0 {
		o.BackoffCoefficient = 1.2
	}
	return nil
}

// Validate checks the options.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return ErrInvalidOptions.WithCause(err)
	}
	if o.MaxRestartDelay > 0 && o.MaxRestartDelay < o.RestartDelay {
		return ErrInvalidOptions.WithCause(
			fmt.Errorf("max-restart-delay %s is below restart-delay %s", o.MaxRestartDelay, o.RestartDelay))
	}
	return nil
}

// restartsDisabled reports whether auto-restart is on but no attempt is allowed.
func (o *Options) restartsDisabled() bool {
	return o.AutoRestart && o.MaxRestartAttempts == 0
}

// AddFlags adds flags for supervisor options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.BoolVar(&o.AutoRestart, namePrefix+"auto-restart", o.AutoRestart, "Restart the resource automatically after it drops")
	fs.DurationVar(&o.ActionTimeout, namePrefix+"action-timeout", o.ActionTimeout, "Deadline for each lifecycle action (0 disables)")
	fs.Float64Var(&o.BackoffCoefficient, namePrefix+"backoff-coefficient", o.BackoffCoefficient, "Growth factor of the restart delay")
	fs.DurationVar(&o.RestartDelay, namePrefix+"restart-delay", o.RestartDelay, "Delay before the first automatic restart")
	fs.DurationVar(&o.MaxRestartDelay, namePrefix+"max-restart-delay", o.MaxRestartDelay, "Upper bound of the restart delay (0 uncapped)")
	fs.IntVar(&o.MaxRestartAttempts, namePrefix+"max-restart-attempts", o.MaxRestartAttempts, "Consecutive restart attempts before giving up (-1 unbounded)")
	fs.StringVar((*string)(&o.StartFailurePolicy), namePrefix+"start-failure-policy", string(o.StartFailurePolicy), "Start-up failure while up: drop|report")
}

// String returns a compact representation for logs.
func (o *Options) String() string {
	return fmt.Sprintf("Supervisor{auto-restart=%t, action-timeout=%s, restart-delay=%s, backoff=%g, max-attempts=%d}",
		o.AutoRestart, o.ActionTimeout, o.RestartDelay, o.BackoffCoefficient, o.MaxRestartAttempts)
}

func (o *Options) clone() *Options {
	c := *o
	return &c
}
