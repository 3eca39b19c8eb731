package mongodb

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
const PasswordEnv = "MONGODB_PASSWORD"

// Options defines configuration options for MongoDB.
type Options struct {
	// URI takes precedence over the discrete connection fields.
	URI      string `json:"uri" mapstructure:"uri" validate:"omitempty,uri"`
	Host     string `json:"host" mapstructure:"host" validate:"required_without=URI"`
	Port     int    `json:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxPoolSize     uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize     uint64        `json:"min-pool-size" mapstructure:"min-pool-size" validate:"ltefield=MaxPoolSize"`
	MaxConnIdleTime time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`

	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SocketTimeout          time.Duration `json:"socket-timeout" mapstructure:"socket-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
	DisconnectTimeout      time.Duration `json:"disconnect-timeout" mapstructure:"disconnect-timeout"`

	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	Direct     bool   `json:"direct" mapstructure:"direct"`

	Lifecycle *storage.Options `json:"lifecycle" mapstructure:"lifecycle" validate:"-"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		MaxPoolSize:            100,
		MinPoolSize:            10,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		SocketTimeout:          30 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		DisconnectTimeout:      10 * time.Second,
		AuthSource:             "admin",
		Lifecycle:              storage.NewOptions(),
	}
}

// MarshalJSON implements json.Marshaler with password redaction.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	c := plain(*o)
	c.Password = component.Redact(o.Password)
	if o.URI != "" {
		c.URI = redactURI(o.URI)
	}
	return json.Marshal(&c)
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, component.Redact(o.Password), o.Database)
}

// LifecycleOptions returns the connect and probe settings.
func (o *Options) LifecycleOptions() *storage.Options {
	return o.Lifecycle
}

// Complete fills the password from the environment and lifecycle defaults.
func (o *Options) Complete() error {
	component.PasswordFromEnv(&o.Password, PasswordEnv)
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = 10 * time.Second
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
		return storage.ErrInvalidConfig.WithMessage("invalid mongodb options").WithCause(agg)
	}
	return nil
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.URI, namePrefix+"uri", o.URI, "MongoDB URI (mongodb://...)")
	fs.StringVar(&o.Host, namePrefix+"host", o.Host, "MongoDB host")
	fs.IntVar(&o.Port, namePrefix+"port", o.Port, "MongoDB port")
	fs.StringVar(&o.Username, namePrefix+"username", o.Username, "MongoDB username")
	fs.StringVar(&o.Password, namePrefix+"password", o.Password, "MongoDB password (prefer the "+PasswordEnv+" env var)")
	fs.StringVar(&o.Database, namePrefix+"database", o.Database, "MongoDB database")
	fs.Uint64Var(&o.MaxPoolSize, namePrefix+"max-pool-size", o.MaxPoolSize, "MongoDB max pool size")
	fs.Uint64Var(&o.MinPoolSize, namePrefix+"min-pool-size", o.MinPoolSize, "MongoDB min pool size")
	fs.DurationVar(&o.MaxConnIdleTime, namePrefix+"max-conn-idle-time", o.MaxConnIdleTime, "MongoDB max connection idle time")
	fs.DurationVar(&o.ConnectTimeout, namePrefix+"connect-timeout", o.ConnectTimeout, "MongoDB connect timeout")
	fs.DurationVar(&o.SocketTimeout, namePrefix+"socket-timeout", o.SocketTimeout, "MongoDB socket timeout")
	fs.DurationVar(&o.ServerSelectionTimeout, namePrefix+"server-selection-timeout", o.ServerSelectionTimeout, "MongoDB server selection timeout")
	fs.DurationVar(&o.DisconnectTimeout, namePrefix+"disconnect-timeout", o.DisconnectTimeout, "MongoDB disconnect timeout")
	fs.StringVar(&o.ReplicaSet, namePrefix+"replica-set", o.ReplicaSet, "MongoDB replica set")
	fs.StringVar(&o.AuthSource, namePrefix+"auth-source", o.AuthSource, "MongoDB auth source")
	fs.BoolVar(&o.Direct, namePrefix+"direct", o.Direct, "MongoDB direct connection")
	if o.Lifecycle == nil {
		o.Lifecycle = storage.NewOptions()
	}
	o.Lifecycle.AddFlags(fs, namePrefix+"lifecycle.")
}
