// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/checkhook/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/checkhook/config.cue on macOS,
// %APPDATA%\checkhook\config.cue on Windows), falling back to ./config.cue.
// The file is validated against an embedded CUE schema (config_schema.cue) and
// CHECKHOOK_* environment variables override individual keys, for example
// CHECKHOOK_CHECKER_TIMEOUT=10s.
package config
