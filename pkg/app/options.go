package app

import "github.com/spf13/pflag"

// CliOptions is implemented by the options struct of an App. Config file
// values are decoded into it with mapstructure tags before Complete and
// Validate run.
type CliOptions interface {
	// AddFlags adds flags to the flagset.
	AddFlags(fs *pflag.FlagSet)
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}
