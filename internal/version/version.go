// Package version reports build metadata for the mediagate binary.
package version

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

var (
	// Set via -ldflags at build time. Empty values are resolved from the
	// build info or git.
	Version = ""
	Commit  = ""
	Date    = ""

	once     sync.Once
	resolved struct {
		version string
		commit  string
		date    string
	}

	runGit    = gitOutput
	readBuild = debug.ReadBuildInfo
)

const gitTimeout = 2 * time.Second

func ensureInitialized() {
	once.Do(func() {
		resolved.version = Version
		resolved.commit = Commit
		resolved.date = Date

		if resolved.date == "" {
			resolved.date = time.Now().Format("2006-01-02")
		}
		if resolved.commit == "" {
			resolved.commit = vcsRevision()
		}
		if resolved.commit == "" {
			resolved.commit = firstNonEmpty(runGit("describe", "--always", "--dirty"), "unknown")
		}
		if resolved.version == "" {
			resolved.version = firstNonEmpty(runGit("describe", "--tags", "--abbrev=0"), "dev")
		}
	})
}

func gitOutput(args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// vcsRevision returns the commit stamped by the go tool, shortened like
// git describe and suffixed with -dirty for modified trees.
func vcsRevision() string {
	info, ok := readBuild()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return ""
	}
	rev = rev[:min(len(rev), 7)]
	if dirty {
		rev += "-dirty"
	}
	return rev
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Reset forgets resolved metadata so the next call resolves it again.
func Reset() {
	once = sync.Once{}
	resolved.version, resolved.commit, resolved.date = "", "", ""
}

// GetVersion returns the release version.
func GetVersion() string {
	ensureInitialized()
	return resolved.version
}

// GetCommit returns the source commit.
func GetCommit() string {
	ensureInitialized()
	return resolved.commit
}

// GetDate returns the build date.
func GetDate() string {
	ensureInitialized()
	return resolved.date
}

// Info returns a one-line description of the build.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("mediagate %s (commit: %s, built: %s, %s/%s)",
		resolved.version, resolved.commit, resolved.date, runtime.GOOS, runtime.GOARCH)
}
