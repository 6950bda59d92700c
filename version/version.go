package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// validCharacters are the characters allowed in appBuild
const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild can be set at build time with
// -ldflags "-X github.com/kaspanet/btcconsensus/version.appBuild=foo".
// When it's empty, the VCS revision recorded by the go tool is used.
var appBuild string

var version = buildVersion(appBuild, vcsRevision())

// Version returns the application version as a semver string with optional
// build metadata
func Version() string {
	return version
}

func buildVersion(build string, revision string) string {
	base := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if build == "" {
		build = revision
	}
	if build == "" || !isValidBuild(build) {
		return base
	}
	return base + "-" + build
}

// vcsRevision returns the first 12 characters of the commit the binary was
// built from, or "" if the go tool didn't record one
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			revision := setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
			return revision
		}
	}
	return ""
}

func isValidBuild(build string) bool {
	for _, r := range build {
		if !strings.ContainsRune(validCharacters, r) {
			return false
		}
	}
	return true
}
