// SPDX-License-Identifier: MPL-2.0

package locate

const (
	// KindConfigured is an explicit binary path from configuration.
	KindConfigured Kind = iota
	// KindPackage is the bin/ directory of the primary installed package.
	KindPackage
	// KindPlatformPackage is the bin/ directory of the legacy {os}-{arch} package.
	KindPlatformPackage
	// KindSystem is a well-known system installation path.
	KindSystem
	// KindCache is the acquirer's cache directory.
	KindCache
	// KindSearchPath is a PATH lookup.
	KindSearchPath
)

type (
	// Kind classifies where a candidate binary was found.
	Kind int

	// Candidate is one location considered during a search.
	Candidate struct {
		Kind Kind
		Path string
	}
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindConfigured:
		return "configured"
	case KindPackage:
		return "package-install"
	case KindPlatformPackage:
		return "legacy-platform-package"
	case KindSystem:
		return "well-known-system-path"
	case KindCache:
		return "cache-directory"
	case KindSearchPath:
		return "search-path"
	}
	return "unknown"
}
