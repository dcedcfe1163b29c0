// SPDX-License-Identifier: MIT
//
// Package build carries metadata (name, version, commit, build time) injected
// at compile time via -ldflags. Defaults identify a development build when no
// flags were provided.
package build

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags at compile time.
var (
	buildName        string
	buildDescription string
	buildTime        string
	buildCommit      string
	buildVersion     string

	buildFlags = &ldFlags{
		Name:        "spectra",
		Description: "Real-time audio feature extraction engine",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies any ldflags-provided values into the build info,
// keeping development defaults for values that were not injected.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildDescription != "" {
		buildFlags.Description = buildDescription
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information. Call Initialize first
// so ldflags overrides are applied.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
