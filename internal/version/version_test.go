package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

// fakeGit answers git describe from a table keyed by the first flag.
type fakeGit struct {
	out   map[string]string
	calls int
}

func (f *fakeGit) run(args ...string) string {
	f.calls++
	if len(args) < 2 {
		return ""
	}
	return f.out[args[1]]
}

func stub(t *testing.T, git *fakeGit, build *debug.BuildInfo) {
	t.Helper()
	origGit, origBuild := runGit, readBuild
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		runGit, readBuild = origGit, origBuild
		Version, Commit, Date = origVersion, origCommit, origDate
		Reset()
	})

	runGit = git.run
	readBuild = func() (*debug.BuildInfo, bool) {
		return build, build != nil
	}
	Version, Commit, Date = "", "", ""
	Reset()
}

func buildInfo(settings ...string) *debug.BuildInfo {
	info := &debug.BuildInfo{}
	for i := 0; i+1 < len(settings); i += 2 {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: settings[i], Value: settings[i+1]})
	}
	return info
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		git         map[string]string
		build       *debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "from git",
			git:         map[string]string{"--tags": "v1.0.0", "--always": "3f2a9c1"},
			wantVersion: "v1.0.0",
			wantCommit:  "3f2a9c1",
		},
		{
			name:        "nothing available",
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
		{
			name:        "build info wins over git",
			git:         map[string]string{"--tags": "v1.1.0", "--always": "from-git"},
			build:       buildInfo("vcs.revision", "0123456789abcdef", "vcs.modified", "false"),
			wantVersion: "v1.1.0",
			wantCommit:  "0123456",
		},
		{
			name:        "dirty tree",
			build:       buildInfo("vcs.revision", "89abcdef01234567", "vcs.modified", "true"),
			wantVersion: "dev",
			wantCommit:  "89abcde-dirty",
		},
		{
			name:        "build info without vcs",
			git:         map[string]string{"--always": "from-git"},
			build:       buildInfo("GOOS", "linux"),
			wantVersion: "dev",
			wantCommit:  "from-git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub(t, &fakeGit{out: tt.git}, tt.build)

			if got := GetVersion(); got != tt.wantVersion {
				t.Errorf("GetVersion() = %q, want %q", got, tt.wantVersion)
			}
			if got := GetCommit(); got != tt.wantCommit {
				t.Errorf("GetCommit() = %q, want %q", got, tt.wantCommit)
			}

			info := Info()
			if !strings.HasPrefix(info, "mediagate "+tt.wantVersion) || !strings.Contains(info, tt.wantCommit) {
				t.Errorf("Info() = %q", info)
			}
		})
	}
}

func TestResolve_Once(t *testing.T) {
	git := &fakeGit{out: map[string]string{"--tags": "v2.0.0"}}
	stub(t, git, nil)

	_ = GetVersion()
	_ = GetCommit()
	_ = Info()
	if git.calls != 2 {
		t.Errorf("git ran %d times, want 2", git.calls)
	}

	Reset()
	_ = GetVersion()
	if git.calls != 4 {
		t.Errorf("git ran %d times after Reset, want 4", git.calls)
	}
}

func TestGetDate(t *testing.T) {
	stub(t, &fakeGit{}, nil)
	if d := GetDate(); len(d) != len("2006-01-02") {
		t.Errorf("GetDate() = %q, want a YYYY-MM-DD date", d)
	}
}

func TestLdflagsTakePrecedence(t *testing.T) {
	git := &fakeGit{out: map[string]string{"--tags": "v9", "--always": "zzz"}}
	stub(t, git, buildInfo("vcs.revision", "ffffffffff"))
	Version, Commit, Date = "1.2.3", "abc123", "2026-10-18"
	Reset()

	if got := GetVersion(); got != "1.2.3" {
		t.Errorf("GetVersion() = %q, want 1.2.3", got)
	}
	if got := GetCommit(); got != "abc123" {
		t.Errorf("GetCommit() = %q, want abc123", got)
	}
	if got := GetDate(); got != "2026-10-18" {
		t.Errorf("GetDate() = %q, want 2026-10-18", got)
	}
	if git.calls != 0 {
		t.Error("git should not run when ldflags are set")
	}
}

func TestGitOutput_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if got := gitOutput("describe", "--tags"); got != "" {
		t.Errorf("gitOutput() = %q, want empty without git", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "c"); got != "c" {
		t.Errorf("firstNonEmpty = %q, want c", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}
