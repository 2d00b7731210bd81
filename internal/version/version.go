// Package version reports how the stratum binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/stratum/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string    `json:"version"    yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform"   yaml:"platform"`
	Dirty     bool      `json:"dirty"      yaml:"dirty"`
}

// vcs holds the settings the Go toolchain stamps into the binary.
type vcs struct {
	revision string
	time     string
	modified bool
	module   string
}

func readVCS() vcs {
	var v vcs
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.module = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time = s.Value
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

// GetBuildInfo returns the version, commit and platform of this binary.
func GetBuildInfo() *BuildInfo {
	v := readVCS()
	return &BuildInfo{
		Version:   resolveVersion(v),
		GitCommit: resolveCommit(v),
		BuildTime: resolveBuildTime(v),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     v.modified,
	}
}

// GetVersion returns the application version.
func GetVersion() string { return resolveVersion(readVCS()) }

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string { return resolveCommit(readVCS()) }

// GetShortVersion returns a one-line version such as "v1.2.0 (abc1234)".
func GetShortVersion() string {
	v := readVCS()
	return shortVersion(resolveVersion(v), resolveCommit(v))
}

// String renders the build information one field per line.
func (b *BuildInfo) String() string {
	parts := []string{"Version: " + b.Version}
	if b.GitCommit != "unknown" {
		commit := b.GitCommit
		if b.Dirty {
			commit += " (dirty)"
		}
		parts = append(parts, "Commit: "+commit)
	}
	if !b.BuildTime.IsZero() {
		parts = append(parts, "Built: "+b.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	return strings.Join(parts, "\n")
}

// IsRelease reports whether this is a tagged build.
func IsRelease() bool {
	return isRelease(GetVersion())
}

func isRelease(version string) bool {
	return version != "dev" && !strings.HasPrefix(version, "dev-")
}

func resolveVersion(v vcs) string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if v.module != "" {
		return v.module
	}
	if len(v.revision) >= 7 {
		return "dev-" + v.revision[:7]
	}
	return "dev"
}

func resolveCommit(v vcs) string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if v.revision != "" {
		return v.revision
	}
	return "unknown"
}

func resolveBuildTime(v vcs) time.Time {
	if t := parseTime(BuildTime); !t.IsZero() {
		return t
	}
	return parseTime(v.time)
}

func shortVersion(version, commit string) string {
	if commit == "unknown" || len(commit) < 7 {
		return version
	}
	short := commit[:7]
	if strings.HasPrefix(version, "dev") {
		return "dev-" + short
	}
	return fmt.Sprintf("%s (%s)", version, short)
}

var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime returns the zero time for values it cannot parse.
func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
