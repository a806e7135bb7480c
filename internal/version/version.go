package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the service current released version.
// Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/manas/internal/version.Version=0.3.0"
var Version = "0.1.0"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// GetCurrentVersion returns the version reported for the given mode.
func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return Version + "-dev"
	}
	return Version
}

// String returns a one-line build description.
func String() string {
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("manas %s (%s, built %s)", Version, commit, BuildTime)
}

// IsValid reports whether version is a valid semantic version (without the "v" prefix).
func IsValid(version string) bool {
	return semver.IsValid(canonical(version))
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

func canonical(version string) string {
	version = strings.TrimSuffix(version, "-dev")
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}
