// SPDX-License-Identifier: MPL-2.0

// Package bashguard blocks shell commands that would wait for keyboard input.
//
// Coding agents run commands without a terminal attached, so an editor, pager,
// REPL or interactive prompt hangs until the tool call times out. The guard
// matches a command against a table of interactive patterns (with lookaheads,
// hence regexp2) and a list of stdin-prompting commands, and explains how to
// run the command through tmux instead.
package bashguard
