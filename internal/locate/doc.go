// SPDX-License-Identifier: MPL-2.0

// Package locate finds an already-installed comment-checker binary.
//
// Resolver searches a fixed, ordered list of candidate locations and returns
// the first one holding a regular file: an explicitly configured path, the
// primary npm package, the legacy per-platform npm package, well-known
// Homebrew paths (macOS only), the acquirer's cache directory and, when
// enabled, PATH. The search is synchronous, touches only the local
// filesystem, and treats every lookup failure as "not here".
package locate
