// SPDX-License-Identifier: MPL-2.0

// Package checker runs the external comment checker against a hook event.
//
// The checker reads one JSON document on stdin and reports through its exit
// status: 0 means clean, 2 means comments were found (details on stderr), and
// anything else is treated as "no check performed". Every failure along the
// way is absorbed; callers only ever see a CheckResult.
package checker
