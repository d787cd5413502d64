// Package version determines the version of this module at runtime, for use
// as a cache-busting component of on-disk compilation cache paths.
package version

import "runtime/debug"

// version is lazily resolved by GetWazerowVersion, then memoized.
var version string

// GetWazerowVersion returns the module version wazerow was built with, as
// reported by the Go module system, or "dev" when unavailable (ex. when
// running from a source checkout without a version tag).
func GetWazerowVersion() string {
	if version != "" {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		version = "dev"
		return version
	}

	for _, dep := range info.Deps {
		if dep.Path == "github.com/wazerow/wazerow" {
			version = dep.Version
			return version
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	} else {
		version = "dev"
	}
	return version
}
