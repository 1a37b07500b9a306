package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	vcs := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-03-04T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		bi          *debug.BuildInfo
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "ldflags win",
			version:     "v0.3.0",
			commit:      "feedbee",
			bi:          vcs,
			wantVersion: "v0.3.0",
			wantCommit:  "feedbee",
			wantDirty:   true,
		},
		{
			name:        "vcs stamp",
			bi:          vcs,
			wantVersion: "dev-20260304",
			wantCommit:  "0123456",
			wantDirty:   true,
		},
		{
			name:        "go install",
			bi:          &debug.BuildInfo{Main: debug.Module{Version: "v0.2.1"}},
			wantVersion: "v0.2.1",
			wantCommit:  "unknown",
		},
		{
			name:        "no build info",
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.version, tt.commit, tt.bi)
			if got.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", got.Version, tt.wantVersion)
			}
			if got.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", got.Commit, tt.wantCommit)
			}
			if got.Dirty != tt.wantDirty {
				t.Errorf("Dirty = %v, want %v", got.Dirty, tt.wantDirty)
			}
		})
	}
}

func TestInfo_String(t *testing.T) {
	in := Info{Version: "v0.3.0", Commit: "abc1234", Dirty: true, GoVersion: "go1.24.10", Platform: "linux/arm64"}
	want := "wifican v0.3.0 (commit abc1234-dirty, go1.24.10, linux/arm64)"
	if got := in.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if got := Get().String(); !strings.HasPrefix(got, Name+" ") {
		t.Errorf("Get().String() = %q", got)
	}
}
