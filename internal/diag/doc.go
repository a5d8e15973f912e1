// SPDX-License-Identifier: MPL-2.0

// Package diag provides the optional debug channel used by checker resolution
// and invocation.
//
// The channel is off by default. When enabled (COMMENT_CHECKER_DEBUG=1 or the
// debug.enabled config key) it appends timestamped logfmt lines to a fixed
// diagnostic file. Writing to the channel never fails from the caller's point
// of view: a file that cannot be opened simply drops the line.
package diag
