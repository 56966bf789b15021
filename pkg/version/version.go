// Package version exposes build information for the searchcv binary.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags:
// -X github.com/YuminosukeSato/searchcv/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the short git commit hash.
	Commit = "unknown"
	// Date is the build date in RFC3339 format.
	Date = "unknown"
)

// BuildInfo is the JSON form of the version command.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the full version line.
func String() string {
	return fmt.Sprintf("searchcv %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// GetInfo returns structured build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
