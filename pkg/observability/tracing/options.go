// Package tracing records supervisor actions as OpenTelemetry spans.
package tracing

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// SamplerType defines the type of sampler to use.
type SamplerType string

const (
	SamplerAlwaysOn    SamplerType = "always_on"
	SamplerAlwaysOff   SamplerType = "always_off"
	SamplerRatio       SamplerType = "ratio"
	SamplerParentBased SamplerType = "parent_based"
)

// ExporterType defines the type of exporter to use.
type ExporterType string

const (
	// ExporterStdout writes spans to stdout.
	ExporterStdout ExporterType = "stdout"
	// ExporterNoop drops spans after sampling.
	ExporterNoop ExporterType = "noop"
)

// Options defines configuration for tracing.
type Options struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"service-name" mapstructure:"service-name"`
	ServiceVersion string        `json:"service-version" mapstructure:"service-version"`
	Environment    string        `json:"environment" mapstructure:"environment"`
	ExporterType   ExporterType  `json:"exporter-type" mapstructure:"exporter-type"`
	PrettyPrint    bool          `json:"pretty-print" mapstructure:"pretty-print"`
	SamplerType    SamplerType   `json:"sampler-type" mapstructure:"sampler-type"`
	SamplerRatio   float64       `json:"sampler-ratio" mapstructure:"sampler-ratio"`
	BatchTimeout   time.Duration `json:"batch-timeout" mapstructure:"batch-timeout"`

	ResourceAttributes map[string]string `json:"resource-attributes" mapstructure:"resource-attributes"`
}

// NewOptions creates default tracing options.
func NewOptions() *Options {
	return &Options{
		ServiceName:        "lifeline",
		Environment:        "development",
		ExporterType:       ExporterStdout,
		SamplerType:        SamplerParentBased,
		SamplerRatio:       1.0,
		BatchTimeout:       5 * time.Second,
		ResourceAttributes: make(map[string]string),
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.BoolVar(&o.Enabled, namePrefix+"enabled", o.Enabled, "Record lifecycle actions as spans")
	fs.StringVar(&o.ServiceName, namePrefix+"service-name", o.ServiceName, "Service name for tracing")
	fs.StringVar(&o.Environment, namePrefix+"environment", o.Environment, "Deployment environment")
	fs.StringVar((*string)(&o.ExporterType), namePrefix+"exporter-type", string(o.ExporterType), "Exporter type (stdout, noop)")
	fs.BoolVar(&o.PrettyPrint, namePrefix+"pretty-print", o.PrettyPrint, "Indent spans written by the stdout exporter")
	fs.StringVar((*string)(&o.SamplerType), namePrefix+"sampler-type", string(o.SamplerType), "Sampler type (always_on, always_off, ratio, parent_based)")
	fs.Float64Var(&o.SamplerRatio, namePrefix+"sampler-ratio", o.SamplerRatio, "Sampling ratio (0.0 to 1.0)")
	fs.DurationVar(&o.BatchTimeout, namePrefix+"batch-timeout", o.BatchTimeout, "Maximum time to wait before exporting a batch")
}

// Complete fills in any missing values with defaults.
func (o *Options) Complete() error {
	if o.ResourceAttributes == nil {
		o.ResourceAttributes = make(map[string]string)
	}
	return nil
}

// Validate validates the tracing options.
func (o *Options) Validate() error {
	if !o.Enabled {
		return nil
	}

	if o.ServiceName == "" {
		return fmt.Errorf("tracing: service name is required when tracing is enabled")
	}

	switch o.ExporterType {
	case ExporterStdout, ExporterNoop:
	default:
		return fmt.Errorf("tracing: invalid exporter type: %s", o.ExporterType)
	}

	switch o.SamplerType {
	case SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased:
	default:
		return fmt.Errorf("tracing: invalid sampler type: %s", o.SamplerType)
	}

	if o.SamplerRatio < 0.0 || o.SamplerRatio > 1.0 {
		return fmt.Errorf("tracing: sampler ratio must be between 0.0 and 1.0, got %f", o.SamplerRatio)
	}

	if o.BatchTimeout <= 0 {
		return fmt.Errorf("tracing: batch timeout must be positive")
	}
	return nil
}
