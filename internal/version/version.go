// Package version reports the dispatch build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is the source revision, set at build time with
// -ldflags "-X github.com/ShayCichocki/dispatch/internal/version.Commit=...".
var Commit = ""

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with the commit appended when known.
func String() string {
	if Commit == "" {
		return Get()
	}
	return Get() + " (" + Commit + ")"
}
