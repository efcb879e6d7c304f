// Package version provides build and version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current release version.
// Set via ldflags at build time, or defaults to dev.
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Info returns the build information for the running binary.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String returns a formatted version string with all build info.
func (b BuildInfo) String() string {
	return fmt.Sprintf("recall %s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.Date, b.GoVersion, b.OS, b.Arch)
}
