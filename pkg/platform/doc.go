// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform naming helpers.
//
// It maps Go's runtime.GOOS/GOARCH pair onto the "{os}-{arch}" keys used by
// the per-platform checker packages (e.g. "darwin-arm64", "win32-x64") and
// derives platform-conditional executable names.
package platform
