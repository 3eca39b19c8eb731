package sqldb

import (
	"time"

	"github.com/spf13/pflag"
	gormlogger "gorm.io/gorm/logger"
)

// PoolOptions configures the database/sql connection pool and GORM logging.
// Each SQL resource embeds it.
type PoolOptions struct {
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	MaxIdleTime           time.Duration `json:"max-idle-time" mapstructure:"max-idle-time"`
	// LogLevel is 1 silent, 2 error, 3 warn, 4 info.
	LogLevel      int           `json:"log-level" mapstructure:"log-level"`
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
}

// NewPoolOptions returns the default pool settings.
func NewPoolOptions() PoolOptions {
	return PoolOptions{
		MaxIdleConnections:    20,
		MaxOpenConnections:    200,
		MaxConnectionLifeTime: time.Hour,
		MaxIdleTime:           10 * time.Minute,
		LogLevel:              1,
		SlowThreshold:         200 * time.Millisecond,
	}
}

// AddFlags adds the pool flags to fs.
func (o *PoolOptions) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.IntVar(&o.MaxIdleConnections, namePrefix+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections")
	fs.IntVar(&o.MaxOpenConnections, namePrefix+"max-open-connections", o.MaxOpenConnections, "Maximum open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, namePrefix+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime")
	fs.DurationVar(&o.MaxIdleTime, namePrefix+"max-idle-time", o.MaxIdleTime, "Maximum connection idle time")
	fs.IntVar(&o.LogLevel, namePrefix+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info)")
	fs.DurationVar(&o.SlowThreshold, namePrefix+"slow-threshold", o.SlowThreshold, "Queries slower than this are logged as warnings")
}

func (o *PoolOptions) gormLevel() gormlogger.LogLevel {
	switch o.LogLevel {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}
