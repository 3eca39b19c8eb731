// Package component holds what every resource package under it shares: the
// options contract and password handling.
package component

import "github.com/spf13/pflag"

// ConfigOptions defines the standard interface for all component options.
//
//	func (o *Options) Complete() error {
//	    if o.Port == 0 {
//	        o.Port = 6379
//	    }
//	    return nil
//	}
type ConfigOptions interface {
	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate validates the options and returns an error if any option is invalid.
	// It should be called after Complete.
	Validate() error

	// AddFlags adds flags for the options to the specified FlagSet. namePrefix
	// is prepended to flag names, e.g. "mysql." results in "--mysql.host".
	AddFlags(fs *pflag.FlagSet, namePrefix string)
}
