// Package opsforge provides the version information for opsforge.
package opsforge

// Version is the current version of opsforge.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
