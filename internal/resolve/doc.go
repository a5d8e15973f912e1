// SPDX-License-Identifier: MPL-2.0

// Package resolve owns the single source of truth for where the checker
// binary lives.
//
// A Coordinator combines a synchronous locator with an optional acquirer.
// Concurrent ResolveAsync callers share one in-flight attempt; the first
// positive result is memoized for the lifetime of the Coordinator. Failed
// attempts are not memoized, but a negative TTL keeps repeated callers from
// re-running acquisition back to back.
package resolve
