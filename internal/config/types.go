// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultTimeout is the default checker run timeout.
	DefaultTimeout Duration = "30s"
	// DefaultNegativeTTL is the default acquisition cooldown after a failure.
	DefaultNegativeTTL Duration = "1m"
	// DefaultScope is the npm scope of the published checker packages.
	DefaultScope = "@code-yeongyu"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDuration is the sentinel error wrapped by InvalidDurationError.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidBinaryFilePath is returned when a BinaryFilePath value is whitespace-only.
	ErrInvalidBinaryFilePath = errors.New("invalid binary file path")
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// Duration is a Go duration string such as "30s" or "1m30s".
	// The zero value ("") means "use the default"; "0" disables the bound.
	Duration string

	// InvalidDurationError is returned when a Duration does not parse or is negative.
	InvalidDurationError struct {
		Field string
		Value Duration
		Err   error
	}

	// BinaryFilePath is an explicit path to the checker executable.
	// The zero value means "search the usual locations".
	BinaryFilePath string

	// InvalidBinaryFilePathError is returned when a BinaryFilePath value is
	// non-empty but whitespace-only.
	InvalidBinaryFilePathError struct {
		Value BinaryFilePath
	}

	// CacheDirPath is where acquired checker binaries are stored.
	// The zero value means the per-user cache directory.
	CacheDirPath string

	// InvalidCacheDirPathError is returned when a CacheDirPath value is
	// non-empty but whitespace-only.
	InvalidCacheDirPathError struct {
		Value CacheDirPath
	}

	// InvalidConfigError collects field-level validation errors for a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Checker controls where the checker is searched for and how it runs.
		Checker CheckerConfig `json:"checker" mapstructure:"checker"`
		// Acquire controls on-demand download of the checker.
		Acquire AcquireConfig `json:"acquire" mapstructure:"acquire"`
		// Resolve controls path resolution caching.
		Resolve ResolveConfig `json:"resolve" mapstructure:"resolve"`
		// Guard configures the interactive command guard.
		Guard GuardConfig `json:"guard" mapstructure:"guard"`
		// Debug configures the diagnostics log.
		Debug DebugConfig `json:"debug" mapstructure:"debug"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// CheckerConfig controls checker discovery and invocation.
	CheckerConfig struct {
		// BinaryPath is tried before any other location.
		BinaryPath BinaryFilePath `json:"binary_path" mapstructure:"binary_path"`
		// Scope is the npm scope of the checker packages.
		Scope string `json:"scope" mapstructure:"scope"`
		// PackageRoots are extra directories searched for node_modules.
		PackageRoots []string `json:"package_roots" mapstructure:"package_roots"`
		// SearchPath enables a PATH lookup as the last resort.
		SearchPath bool `json:"search_path" mapstructure:"search_path"`
		// Timeout bounds one checker run.
		Timeout Duration `json:"timeout" mapstructure:"timeout"`
	}

	// AcquireConfig controls downloading the checker from GitHub Releases.
	AcquireConfig struct {
		// Enabled allows on-demand downloads (default: true).
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// CacheDir overrides the download cache directory.
		CacheDir CacheDirPath `json:"cache_dir" mapstructure:"cache_dir"`
		// Version pins a release tag. Empty selects the newest stable release.
		Version string `json:"version" mapstructure:"version"`
		// APIBaseURL overrides the GitHub API endpoint.
		APIBaseURL string `json:"api_base_url" mapstructure:"api_base_url"`
	}

	// ResolveConfig controls the resolution cache.
	ResolveConfig struct {
		// NegativeTTL suppresses repeated downloads after a failure.
		NegativeTTL Duration `json:"negative_ttl" mapstructure:"negative_ttl"`
	}

	// GuardConfig configures the interactive command guard.
	GuardConfig struct {
		Disabled           bool     `json:"disabled" mapstructure:"disabled"`
		AdditionalPatterns []string `json:"additional_patterns" mapstructure:"additional_patterns"`
		AllowPatterns      []string `json:"allow_patterns" mapstructure:"allow_patterns"`
	}

	// DebugConfig configures the diagnostics log.
	DebugConfig struct {
		// Enabled turns diagnostics on in addition to COMMENT_CHECKER_DEBUG=1.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// LogFile overrides the diagnostics log location.
		LogFile string `json:"log_file" mapstructure:"log_file"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose mirrors diagnostics to stderr
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// String returns the string representation of the Duration.
func (d Duration) String() string { return string(d) }

// Parse converts d to a time.Duration, returning fallback for the zero value.
func (d Duration) Parse(fallback time.Duration) (time.Duration, error) {
	if d == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("must not be negative")
	}
	return v, nil
}

// isValid reports whether d parses as a non-negative duration.
func (d Duration) isValid(field string) (bool, []error) {
	if _, err := d.Parse(0); err != nil {
		return false, []error{&InvalidDurationError{Field: field, Value: d, Err: err}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s: invalid duration %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// String returns the string representation of the BinaryFilePath.
func (p BinaryFilePath) String() string { return string(p) }

// IsValid returns whether the BinaryFilePath is valid.
// Non-zero values must not be whitespace-only.
func (p BinaryFilePath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidBinaryFilePathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidBinaryFilePathError.
func (e *InvalidBinaryFilePathError) Error() string {
	return fmt.Sprintf("invalid binary file path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidBinaryFilePath for errors.Is() compatibility.
func (e *InvalidBinaryFilePathError) Unwrap() error { return ErrInvalidBinaryFilePath }

// String returns the string representation of the CacheDirPath.
func (p CacheDirPath) String() string { return string(p) }

// IsValid returns whether the CacheDirPath is valid.
// Non-zero values must not be whitespace-only.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidCacheDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCacheDirPathError.
func (e *InvalidCacheDirPathError) Error() string {
	return fmt.Sprintf("invalid cache dir path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidCacheDirPath for errors.Is() compatibility.
func (e *InvalidCacheDirPathError) Unwrap() error { return ErrInvalidCacheDirPath }

// IsValid returns whether the Config has valid fields, collecting every
// field error rather than stopping at the first.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	collect := func(valid bool, fieldErrs []error) {
		if !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	collect(c.Checker.BinaryPath.IsValid())
	collect(c.Checker.Timeout.isValid("checker.timeout"))
	collect(c.Acquire.CacheDir.IsValid())
	collect(c.Resolve.NegativeTTL.isValid("resolve.negative_ttl"))
	collect(c.UI.ColorScheme.IsValid())

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Checker: CheckerConfig{
			Scope:        DefaultScope,
			PackageRoots: []string{},
			Timeout:      DefaultTimeout,
		},
		Acquire: AcquireConfig{
			Enabled:    true,
			APIBaseURL: "https://api.github.com",
		},
		Resolve: ResolveConfig{
			NegativeTTL: DefaultNegativeTTL,
		},
		Guard: GuardConfig{
			AdditionalPatterns: []string{},
			AllowPatterns:      []string{},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
