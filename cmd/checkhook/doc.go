// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for checkhook.
//
// The hook entry points (check, guard) read one hook event from stdin and
// report through the exit code: 0 lets the tool call proceed, 2 returns the
// message on stderr to the agent. Every internal failure maps to 0.
package cmd
