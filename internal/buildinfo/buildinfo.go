// Package buildinfo carries version data stamped at link time with
// -ldflags "-X vrpengine/internal/buildinfo.Version=...".
package buildinfo

import "runtime"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// ABIVersion is the version of the exported C boundary. It changes only when an
// exported symbol or payload shape changes incompatibly.
const ABIVersion = 1

// Info returns the build metadata as reported by the version endpoints.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
