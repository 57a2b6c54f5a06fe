package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

var (
	once   sync.Once
	cached Info
)

// Get returns the build information.
func Get() Info {
	once.Do(func() {
		cached = resolve(Version, Commit, BuildTime, readVCS)
	})
	return cached
}

// resolve fills values missing from ldflags using vcs.
func resolve(version, commit, buildTime string, vcs func() (rev, at string)) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
	if info.Commit == "unknown" || info.BuildTime == "unknown" {
		rev, at := vcs()
		if info.Commit == "unknown" && rev != "" {
			info.Commit = shortRevision(rev)
		}
		if info.BuildTime == "unknown" && at != "" {
			info.BuildTime = at
		}
	}
	return info
}

func readVCS() (rev, at string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return rev, at
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String returns a formatted version string.
func String() string {
	info := Get()
	return info.Version + " (" + info.Commit + ") built at " + info.BuildTime + " with " + info.GoVersion
}
