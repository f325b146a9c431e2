// Package version reports build metadata stamped in with -ldflags
package version

import "runtime/debug"

// BuildInfo holds version information about the build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Set via -ldflags "-X 'rollcall/internal/core/version.version=v0.3.0' -X 'rollcall/internal/core/version.commit=abcd'"
var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	c := commit
	if c == "" {
		c = vcsRevision()
	}
	return BuildInfo{Service: service, Version: version, Commit: c, Date: date}
}

func vcsRevision() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "none"
}
