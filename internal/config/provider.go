// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects where configuration is read from.
	LoadOptions struct {
		// ConfigFilePath loads this file instead of searching. A missing file
		// is an error.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir() in the search.
		ConfigDirPath string
	}

	// Provider loads configuration. The CLI depends on this interface so tests
	// can supply a fixed Config.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// SourceProvider is a Provider that also reports the file the
	// configuration came from.
	SourceProvider interface {
		Provider
		LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error)
	}

	fileProvider struct{}
)

// NewProvider returns the file, environment and defaults backed provider.
func NewProvider() SourceProvider {
	return fileProvider{}
}

// Load implements Provider.
func (fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}

// LoadWithSource implements SourceProvider. The source is empty when only
// defaults and environment variables applied.
func (fileProvider) LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}
