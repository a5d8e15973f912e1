// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/checkhook/checkhook/internal/issue"
	"github.com/checkhook/checkhook/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "checkhook"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. CHECKHOOK_CHECKER_TIMEOUT.
	EnvPrefix = "CHECKHOOK"

	// maxConfigFileSize bounds the config file read.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the checkhook configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// LoadWithSource loads configuration and reports the file it came from
// (empty when only defaults and environment applied).
func LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}

// loadWithOptions layers defaults, the CUE file and CHECKHOOK_* environment
// variables, in increasing precedence.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithHint("Check that the file contains valid CUE syntax").
				WithHint("Verify the configuration values match the expected schema").
				WithHint("Use 'checkhook config show --defaults' to see a valid configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so validate the merged result.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithHint("Durations use Go syntax such as \"30s\" or \"1m\"").
			WithHint("Check " + EnvPrefix + "_* environment variables for stray values").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("checker.binary_path", defaults.Checker.BinaryPath)
	v.SetDefault("checker.scope", defaults.Checker.Scope)
	v.SetDefault("checker.package_roots", defaults.Checker.PackageRoots)
	v.SetDefault("checker.search_path", defaults.Checker.SearchPath)
	v.SetDefault("checker.timeout", defaults.Checker.Timeout)
	v.SetDefault("acquire.enabled", defaults.Acquire.Enabled)
	v.SetDefault("acquire.cache_dir", defaults.Acquire.CacheDir)
	v.SetDefault("acquire.version", defaults.Acquire.Version)
	v.SetDefault("acquire.api_base_url", defaults.Acquire.APIBaseURL)
	v.SetDefault("resolve.negative_ttl", defaults.Resolve.NegativeTTL)
	v.SetDefault("guard.disabled", defaults.Guard.Disabled)
	v.SetDefault("guard.additional_patterns", defaults.Guard.AdditionalPatterns)
	v.SetDefault("guard.allow_patterns", defaults.Guard.AllowPatterns)
	v.SetDefault("debug.enabled", defaults.Debug.Enabled)
	v.SetDefault("debug.log_file", defaults.Debug.LogFile)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// findConfigFile picks the explicit file, then <config dir>/config.cue, then
// ./config.cue. No file is not an error.
func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithHint("Verify the file path is correct").
				WithHint("Check that the file exists and is readable").
				WithHint("Use 'checkhook config show' to see the effective configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := ConfigFileName + "." + ConfigFileExt; fileExists(p) {
		return p, nil
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	// Concrete(false): every field is optional and defaults come from Viper.
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file unless one already exists,
// returning its path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// checkhook configuration file\n\n")

	sb.WriteString("checker: {\n")
	if cfg.Checker.BinaryPath != "" {
		fmt.Fprintf(&sb, "\tbinary_path: %q\n", cfg.Checker.BinaryPath)
	}
	fmt.Fprintf(&sb, "\tscope: %q\n", cfg.Checker.Scope)
	writeCUEList(&sb, "\t", "package_roots", cfg.Checker.PackageRoots)
	fmt.Fprintf(&sb, "\tsearch_path: %v\n", cfg.Checker.SearchPath)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Checker.Timeout)
	sb.WriteString("}\n")

	sb.WriteString("\nacquire: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Acquire.Enabled)
	if cfg.Acquire.CacheDir != "" {
		fmt.Fprintf(&sb, "\tcache_dir: %q\n", cfg.Acquire.CacheDir)
	}
	if cfg.Acquire.Version != "" {
		fmt.Fprintf(&sb, "\tversion: %q\n", cfg.Acquire.Version)
	}
	fmt.Fprintf(&sb, "\tapi_base_url: %q\n", cfg.Acquire.APIBaseURL)
	sb.WriteString("}\n")

	sb.WriteString("\nresolve: {\n")
	fmt.Fprintf(&sb, "\tnegative_ttl: %q\n", cfg.Resolve.NegativeTTL)
	sb.WriteString("}\n")

	sb.WriteString("\nguard: {\n")
	fmt.Fprintf(&sb, "\tdisabled: %v\n", cfg.Guard.Disabled)
	writeCUEList(&sb, "\t", "additional_patterns", cfg.Guard.AdditionalPatterns)
	writeCUEList(&sb, "\t", "allow_patterns", cfg.Guard.AllowPatterns)
	sb.WriteString("}\n")

	sb.WriteString("\ndebug: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Debug.Enabled)
	if cfg.Debug.LogFile != "" {
		fmt.Fprintf(&sb, "\tlog_file: %q\n", cfg.Debug.LogFile)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeCUEList(sb *strings.Builder, indent, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s%s: [\n", indent, key)
	for _, item := range items {
		fmt.Fprintf(sb, "%s\t%q,\n", indent, item)
	}
	fmt.Fprintf(sb, "%s]\n", indent)
}
