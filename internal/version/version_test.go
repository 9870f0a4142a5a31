package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, tg, c, bt string, reader func() (*debug.BuildInfo, bool)) {
	t.Helper()
	origTag, origCommit, origBuildTime, origReader := tag, commit, buildTime, buildInfoReader
	t.Cleanup(func() {
		tag, commit, buildTime, buildInfoReader = origTag, origCommit, origBuildTime, origReader
	})
	tag, commit, buildTime, buildInfoReader = tg, c, bt, reader
}

func vcsInfo(settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestCurrent(t *testing.T) {
	vcs := vcsInfo(
		debug.BuildSetting{Key: "vcs.revision", Value: "vcs-commit"},
		debug.BuildSetting{Key: "vcs.time", Value: "vcs-time"},
		debug.BuildSetting{Key: "other.key", Value: "ignored"},
	)

	tests := []struct {
		name      string
		tag       string
		commit    string
		buildTime string
		reader    func() (*debug.BuildInfo, bool)
		expected  Info
	}{
		{
			name:      "ldflags only",
			tag:       "v1.0.0",
			commit:    "abc123",
			buildTime: "2025-04-15",
			reader:    func() (*debug.BuildInfo, bool) { return nil, false },
			expected:  Info{Tag: "v1.0.0", Commit: "abc123", BuildTime: "2025-04-15"},
		},
		{
			name:      "vcs fills unset values",
			tag:       "dev",
			commit:    unsetCommit,
			buildTime: unsetBuildTime,
			reader:    vcs,
			expected:  Info{Tag: "dev", Commit: "vcs-commit", BuildTime: "vcs-time"},
		},
		{
			name:      "ldflags win over vcs",
			tag:       "v2.0.0",
			commit:    "ldflags-commit",
			buildTime: "ldflags-time",
			reader:    vcs,
			expected:  Info{Tag: "v2.0.0", Commit: "ldflags-commit", BuildTime: "ldflags-time"},
		},
		{
			name:      "empty build settings",
			tag:       "dev",
			commit:    unsetCommit,
			buildTime: unsetBuildTime,
			reader:    vcsInfo(),
			expected:  Info{Tag: "dev", Commit: unsetCommit, BuildTime: unsetBuildTime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuild(t, tt.tag, tt.commit, tt.buildTime, tt.reader)
			assert.Equal(t, tt.expected, Current())
		})
	}
}

func TestString(t *testing.T) {
	withBuild(t, "v1.2.3", "abc123", "2025-04-15", func() (*debug.BuildInfo, bool) { return nil, false })

	assert.Equal(t,
		"recipebox v1.2.3 (abc123) built at 2025-04-15\nhttps://github.com/noot-app/recipebox/releases/tag/v1.2.3",
		String())
	assert.Equal(t, "v1.2.3", Tag())
}
