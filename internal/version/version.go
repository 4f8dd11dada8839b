// Package version holds build metadata injected via ldflags.
package version

// Set at build time:
//
//	-ldflags "-X github.com/bissquit/incident-console/internal/version.Version=1.2.3"
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the build metadata served by the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Info returns the current build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
	}
}
