// Package buildinfo carries the version stamped into the binary.
package buildinfo

import "strings"

// Set with -ldflags at build time, for example:
//
//	-X 'github.com/m3rciful/slrbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/slrbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/slrbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders "version (commit) date", leaving out empty parts.
func String() string {
	parts := []string{Version}
	if Commit != "" {
		parts = append(parts, "("+Commit+")")
	}
	if Date != "" {
		parts = append(parts, Date)
	}
	return strings.Join(parts, " ")
}
