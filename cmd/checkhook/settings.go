// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"

	"github.com/checkhook/checkhook/internal/checker"
	"github.com/checkhook/checkhook/internal/config"
	"github.com/checkhook/checkhook/internal/resolve"
)

// envGitHubToken authenticates release queries when set.
const envGitHubToken = "GITHUB_TOKEN"

// settingsFromConfig maps the loaded configuration onto service settings.
// Zero-valued config fields keep the service defaults.
func settingsFromConfig(cfg *config.Config) (checker.Settings, error) {
	s := checker.DefaultSettings()

	timeout, err := cfg.Checker.Timeout.Parse(checker.DefaultTimeout)
	if err != nil {
		return s, &config.InvalidDurationError{Field: "checker.timeout", Value: cfg.Checker.Timeout, Err: err}
	}
	ttl, err := cfg.Resolve.NegativeTTL.Parse(resolve.DefaultNegativeTTL)
	if err != nil {
		return s, &config.InvalidDurationError{Field: "resolve.negative_ttl", Value: cfg.Resolve.NegativeTTL, Err: err}
	}

	s.BinaryPath = string(cfg.Checker.BinaryPath)
	if cfg.Checker.Scope != "" {
		s.Scope = cfg.Checker.Scope
	}
	s.PackageRoots = cfg.Checker.PackageRoots
	s.SearchPath = cfg.Checker.SearchPath
	s.Timeout = timeout

	s.Download = cfg.Acquire.Enabled
	if cfg.Acquire.CacheDir != "" {
		s.CacheDir = string(cfg.Acquire.CacheDir)
	}
	s.Version = cfg.Acquire.Version
	if cfg.Acquire.APIBaseURL != "" {
		s.APIBaseURL = cfg.Acquire.APIBaseURL
	}
	s.NegativeTTL = ttl
	s.GitHubToken = os.Getenv(envGitHubToken)
	return s, nil
}
