// Package version exposes build-time version metadata for the dwellscope binary.
package version

import "runtime/debug"

// Build metadata, overridable at link time via
// -ldflags "-X github.com/dwellscope/dwellscope/pkg/version.Version=...".
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "<unknown>"

	// Date is the build timestamp in RFC 3339 form.
	Date = "<unknown>"
)

// InitFromBuildInfo fills Commit from the embedded VCS metadata when it was
// not set at link time. It is a no-op for linker-stamped builds.
func InitFromBuildInfo() {
	if Commit != "<unknown>" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value

			return
		}
	}
}
