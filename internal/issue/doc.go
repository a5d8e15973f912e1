// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalogue of long-form,
// Markdown-formatted guidance rendered for the terminal with glamour.
package issue
