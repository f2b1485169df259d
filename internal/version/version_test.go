package version

import (
	"runtime/debug"
	"testing"
)

func TestGet_Defaults(t *testing.T) {
	b := Get()
	if b.Version != GetVersion() || b.Version == "" {
		t.Fatalf("unexpected version %q", b.Version)
	}
	if b.Commit == "" || b.Date == "" {
		t.Fatalf("commit and date must never be empty: %+v", b)
	}
}

func TestWithVCS(t *testing.T) {
	cases := []struct {
		name     string
		build    Build
		settings []debug.BuildSetting
		want     Build
	}{
		{
			name:  "fills unknown fields",
			build: Build{Version: "dev", Commit: unknown, Date: unknown},
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
			},
			want: Build{Version: "dev", Commit: "0123456789ab", Date: "2026-03-01T10:00:00Z"},
		},
		{
			name:     "ldflags win",
			build:    Build{Version: "1.4.0", Commit: "abc123", Date: "2026-02-01"},
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffff"}},
			want:     Build{Version: "1.4.0", Commit: "abc123", Date: "2026-02-01"},
		},
		{
			name:     "empty vcs keeps unknown",
			build:    Build{Version: "dev", Commit: unknown, Date: unknown},
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: ""}, {Key: "GOOS", Value: "linux"}},
			want:     Build{Version: "dev", Commit: unknown, Date: unknown},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.build.withVCS(tc.settings); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestBuild_StringAndFields(t *testing.T) {
	b := Build{Version: "1.4.0", Commit: "abc123", Date: "2026-02-01"}

	if got := b.String(); got != "version=1.4.0 commit=abc123 date=2026-02-01" {
		t.Fatalf("unexpected string %q", got)
	}
	fields := b.Fields()
	if fields["version"] != "1.4.0" || fields["commit"] != "abc123" || fields["built"] != "2026-02-01" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
