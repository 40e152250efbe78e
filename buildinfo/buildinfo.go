// Package buildinfo reports the version of the running binary. Release
// builds set the values with ldflags:
//
//	go build -ldflags "-X github.com/nomis52/docscore/buildinfo.version=v1.2.0 \
//	    -X github.com/nomis52/docscore/buildinfo.gitCommit=$(git rev-parse --short HEAD) \
//	    -X github.com/nomis52/docscore/buildinfo.buildTime=$(date -u +%FT%TZ)"
//
// Other builds fall back to the module and VCS data embedded by the Go
// toolchain.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

var (
	version   string
	buildTime string
	gitCommit string
)

// Properties describes a build.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	Modified  bool   `json:"modified,omitempty"`
}

// String formats p as "v1.2.0 (abc1234, 2026-01-02T03:04:05Z)".
func (p Properties) String() string {
	commit := p.GitCommit
	if p.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", p.Version, commit, p.BuildTime)
}

// Get returns the properties of the running binary.
func Get() Properties {
	info, _ := debug.ReadBuildInfo()
	return resolve(info)
}

func resolve(info *debug.BuildInfo) Properties {
	p := Properties{Version: version, BuildTime: buildTime, GitCommit: gitCommit}
	if info != nil {
		if p.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			p.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if p.GitCommit == "" {
					p.GitCommit = shortCommit(s.Value)
				}
			case "vcs.time":
				if p.BuildTime == "" {
					p.BuildTime = s.Value
				}
			case "vcs.modified":
				p.Modified = s.Value == "true"
			}
		}
	}
	if p.Version == "" {
		p.Version = "dev"
	}
	if p.BuildTime == "" {
		p.BuildTime = unknown
	}
	if p.GitCommit == "" {
		p.GitCommit = unknown
	}
	return p
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
