package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		info *debug.BuildInfo
		want Properties
	}{
		{
			name: "no build info",
			want: Properties{Version: "dev", BuildTime: "unknown", GitCommit: "unknown"},
		},
		{
			name: "devel build with vcs data",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			want: Properties{Version: "dev", BuildTime: "2026-01-02T03:04:05Z", GitCommit: "0123456789ab", Modified: true},
		},
		{
			name: "go install of a tagged module",
			info: &debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}},
			want: Properties{Version: "v0.3.1", BuildTime: "unknown", GitCommit: "unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(tt.info))
		})
	}
}

func TestResolve_LdflagsWin(t *testing.T) {
	defer func(v, b, c string) { version, buildTime, gitCommit = v, b, c }(version, buildTime, gitCommit)
	version, buildTime, gitCommit = "v1.2.0", "2026-10-01T00:00:00Z", "abc1234"

	got := resolve(&debug.BuildInfo{
		Main:     debug.Module{Version: "v0.0.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffffffff"}},
	})
	assert.Equal(t, Properties{Version: "v1.2.0", BuildTime: "2026-10-01T00:00:00Z", GitCommit: "abc1234"}, got)
	assert.Equal(t, "v1.2.0 (abc1234, 2026-10-01T00:00:00Z)", got.String())
}
