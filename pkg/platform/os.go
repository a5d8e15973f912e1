// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// exeSuffix is appended to executable names on Windows.
const exeSuffix = ".exe"

// ExecutableName returns base with the platform executable suffix for goos.
func ExecutableName(goos, base string) string {
	if goos == Windows {
		return base + exeSuffix
	}
	return base
}
