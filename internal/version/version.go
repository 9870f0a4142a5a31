// Package version reports build information injected at link time.
package version

import (
	"fmt"
	"runtime/debug"
)

// Sentinels replaced via -ldflags "-X github.com/noot-app/recipebox/internal/version.tag=..."
const (
	unsetCommit    = "unknown"
	unsetBuildTime = "unknown"
)

var (
	tag       = "dev"
	commit    = unsetCommit
	buildTime = unsetBuildTime
)

const releaseURL = "https://github.com/noot-app/recipebox/releases/tag/%s"

// buildInfoReader is swapped in tests
var buildInfoReader = debug.ReadBuildInfo

// Tag returns the release tag, "dev" for local builds
func Tag() string {
	return tag
}

// Info is the resolved build metadata
type Info struct {
	Tag       string `json:"tag"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current resolves build metadata. Link-time values win; VCS stamps from the
// Go toolchain fill in whatever was left unset.
func Current() Info {
	info := Info{Tag: tag, Commit: commit, BuildTime: buildTime}

	bi, ok := buildInfoReader()
	if !ok || bi == nil {
		return info
	}
	for _, setting := range bi.Settings {
		switch {
		case setting.Key == "vcs.revision" && commit == unsetCommit:
			info.Commit = setting.Value
		case setting.Key == "vcs.time" && buildTime == unsetBuildTime:
			info.BuildTime = setting.Value
		}
	}
	return info
}

// String renders the version banner printed by --version
func String() string {
	info := Current()
	return fmt.Sprintf("recipebox %s (%s) built at %s\n"+releaseURL, info.Tag, info.Commit, info.BuildTime, info.Tag)
}
