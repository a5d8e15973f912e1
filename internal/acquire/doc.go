// SPDX-License-Identifier: MPL-2.0

// Package acquire fetches the comment-checker binary on demand.
//
// When no local copy is found, the Acquirer downloads the release archive for
// the running platform from GitHub Releases, verifies it against the
// release's checksums.txt, extracts the executable and moves it atomically
// into a per-user cache directory. Subsequent lookups hit the cache.
//
// The package is organized into four concerns:
//   - github.go: HTTP client for the GitHub Releases API (list, get-by-tag, download)
//   - checksum.go: SHA256 checksum parsing and file verification
//   - archive.go: tar.gz / zip extraction by executable base name
//   - acquire.go: Acquirer composing the above plus the cache layout
package acquire
