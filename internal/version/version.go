// Package version reports the build version of the empacy binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X empacy/internal/version.version=v1.2.3 -X empacy/internal/version.commit=abc123".
var (
	version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var
	commit  = ""    //nolint:gochecknoglobals // ldflags requires package-level var
)

// String returns the version. Without ldflags it falls back to the module
// version recorded by `go install`, then to "dev".
func String() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// Commit returns the VCS revision, from ldflags or the embedded build info.
func Commit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return ""
}

// Full returns "version (commit)", or just the version when the commit is unknown.
func Full() string {
	if c := Commit(); c != "" {
		return fmt.Sprintf("%s (%s)", String(), c)
	}
	return String()
}
