package app

import "github.com/kart-io/medreport/pkg/infra/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the flag sets of every option group, by section.
	Flags() cliflag.NamedFlagSets
	// Complete fills in derived values and environment fallbacks.
	Complete() error
	// Validate validates the options.
	Validate() error
}
