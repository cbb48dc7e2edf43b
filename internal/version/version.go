package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const devVersion = "0.1.0-dev"

var (
	// Name of the application
	AppName = "davsync"

	// Version is set with -ldflags at release time
	Version = devVersion

	// Revision is the git commit the binary was built from
	Revision = "HEAD"

	// BuildDate is the vcs commit time, or empty for untracked builds
	BuildDate = ""
)

// fromBuildInfo fills in whatever ldflags left at its default.
func fromBuildInfo(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if mainVersion != "" && mainVersion != "(devel)" {
			Version = strings.TrimPrefix(mainVersion, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

// Short returns `0.1.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-01-01T00:00:00Z)`
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

// UserAgent is sent with every request to the remote endpoint.
func UserAgent() string {
	return AppName + "/" + Version
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	fromBuildInfo(info.Main.Version, settings)
}
