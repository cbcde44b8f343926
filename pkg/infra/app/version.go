package app

import (
	"runtime"

	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// GetVersion returns the git version the binary was built from.
func GetVersion() string {
	return version.Get().GitVersion
}

// VersionFields returns the build identity as logger key/value pairs.
func VersionFields() []any {
	return []any{
		"version", GetVersion(),
		"go", runtime.Version(),
		"platform", runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// addVersionFlags registers --version on fs.
func addVersionFlags(fs *pflag.FlagSet) {
	version.AddFlags(fs)
}

// printVersionIfRequested prints build info and exits when --version was given.
func printVersionIfRequested() {
	version.PrintAndExitIfRequested()
}
