// Package version reports the wifican build.
//
// Release builds stamp the version with ldflags:
//
//	go build -ldflags="-X github.com/muurk/wifican/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/wifican/internal/version.Commit=abc1234" ./cmd/wifican
//
// Other builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Name is the program name shown by "wifican version".
const Name = "wifican"

// Set with ldflags; empty in development builds.
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
	Platform  string
}

var (
	once sync.Once
	info Info
)

// Get returns the build information, resolving it on first use.
func Get() Info {
	once.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		info = resolve(Version, Commit, bi)
	})
	return info
}

func resolve(version, commit string, bi *debug.BuildInfo) Info {
	in := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	var revision, vcsTime string
	if bi != nil {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.time":
				vcsTime = s.Value
			case "vcs.modified":
				in.Dirty = s.Value == "true"
			}
		}
		// Set by "go install module@version".
		if in.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			in.Version = bi.Main.Version
		}
	}

	if in.Commit == "" {
		in.Commit = shortHash(revision)
	}
	if in.Version == "" {
		in.Version = "dev"
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			in.Version += "-" + t.UTC().Format("20060102")
		}
	}
	return in
}

func shortHash(rev string) string {
	switch {
	case rev == "":
		return "unknown"
	case len(rev) > 7:
		return rev[:7]
	default:
		return rev
	}
}

// String renders the version line, e.g.
// "wifican v0.3.0 (commit abc1234, go1.24.10, linux/arm64)".
func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s %s (commit %s, %s, %s)", Name, i.Version, commit, i.GoVersion, i.Platform)
}
