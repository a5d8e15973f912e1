// SPDX-License-Identifier: MPL-2.0

package locate

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/pkg/platform"
)

// binaryBase is the checker executable name without platform suffix.
const binaryBase = "comment-checker"

var homebrewPaths = []string{
	"/opt/homebrew/bin/comment-checker",
	"/usr/local/bin/comment-checker",
}

type (
	// CacheLookup reports the acquirer's cached binary without downloading.
	// *acquire.Acquirer satisfies it.
	CacheLookup interface {
		CachedPath() (string, bool)
	}

	// Resolver searches candidate locations for the checker binary.
	// A Resolver is immutable after construction and safe for concurrent use.
	Resolver struct {
		configured string
		scope      string
		packages   PackageLocator
		cache      CacheLookup
		searchPath bool
		system     []string
		goos       string
		goarch     string
		logger     *log.Logger
		lookPath   func(string) (string, error)
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// step produces zero or more candidate paths of one kind.
	step struct {
		kind  Kind
		paths func() []string
	}
)

// WithConfiguredPath sets an explicit binary path that is tried first.
func WithConfiguredPath(p string) Option {
	return func(r *Resolver) {
		r.configured = p
	}
}

// WithScope overrides the npm scope of the checker packages.
func WithScope(scope string) Option {
	return func(r *Resolver) {
		if scope != "" {
			r.scope = scope
		}
	}
}

// WithPackageLocator overrides the package metadata lookup.
func WithPackageLocator(p PackageLocator) Option {
	return func(r *Resolver) {
		r.packages = p
	}
}

// WithCache sets the cache directory lookup.
func WithCache(c CacheLookup) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithSearchPath enables a final PATH lookup.
func WithSearchPath(enabled bool) Option {
	return func(r *Resolver) {
		r.searchPath = enabled
	}
}

// WithSystemPaths replaces the well-known system paths consulted on macOS.
func WithSystemPaths(paths ...string) Option {
	return func(r *Resolver) {
		r.system = paths
	}
}

// WithPlatform overrides GOOS/GOARCH, mainly for tests.
func WithPlatform(goos, goarch string) Option {
	return func(r *Resolver) {
		r.goos = goos
		r.goarch = goarch
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver for the running platform.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		scope:    DefaultScope,
		system:   homebrewPaths,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		logger:   diag.Discard(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.packages == nil {
		r.packages = DefaultNodeModules()
	}
	return r
}

// BinaryName is the platform-specific executable file name.
func (r *Resolver) BinaryName() string {
	return platform.ExecutableName(r.goos, binaryBase)
}

// Locate returns the first candidate holding the binary. It never downloads.
func (r *Resolver) Locate() (Candidate, bool) {
	for _, s := range r.steps() {
		for _, p := range s.paths() {
			if isRegularFile(p) {
				r.logger.Debug("found binary", "kind", s.kind, "path", p)
				return Candidate{Kind: s.kind, Path: p}, true
			}
			r.logger.Debug("candidate missing", "kind", s.kind, "path", p)
		}
	}
	r.logger.Debug("no binary found in known locations")
	return Candidate{}, false
}

// All returns every candidate that currently holds the binary, in search
// order. Used for diagnostics; Locate is what resolution relies on.
func (r *Resolver) All() []Candidate {
	var hits []Candidate
	for _, s := range r.steps() {
		for _, p := range s.paths() {
			if isRegularFile(p) {
				hits = append(hits, Candidate{Kind: s.kind, Path: p})
			}
		}
	}
	return hits
}

func (r *Resolver) steps() []step {
	return []step{
		{kind: KindConfigured, paths: r.configuredPaths},
		{kind: KindPackage, paths: r.primaryPackagePaths},
		{kind: KindPlatformPackage, paths: r.platformPackagePaths},
		{kind: KindSystem, paths: r.systemPaths},
		{kind: KindCache, paths: r.cachePaths},
		{kind: KindSearchPath, paths: r.searchPaths},
	}
}

func (r *Resolver) configuredPaths() []string {
	if r.configured == "" {
		return nil
	}
	return []string{r.configured}
}

func (r *Resolver) primaryPackagePaths() []string {
	return r.packageBinary(PrimaryPackageName(r.scope))
}

func (r *Resolver) platformPackagePaths() []string {
	key, err := platform.KeyFor(r.goos, r.goarch)
	if err != nil {
		// No legacy package exists for this platform.
		return nil
	}
	return r.packageBinary(PlatformPackageName(r.scope, key))
}

func (r *Resolver) packageBinary(name string) []string {
	dir, ok := r.packages.PackageDir(name)
	if !ok {
		r.logger.Debug("package not installed", "package", name)
		return nil
	}
	return []string{filepath.Join(dir, "bin", r.BinaryName())}
}

func (r *Resolver) systemPaths() []string {
	if r.goos != platform.Darwin {
		return nil
	}
	return r.system
}

func (r *Resolver) cachePaths() []string {
	if r.cache == nil {
		return nil
	}
	if p, ok := r.cache.CachedPath(); ok {
		return []string{p}
	}
	return nil
}

func (r *Resolver) searchPaths() []string {
	if !r.searchPath {
		return nil
	}
	p, err := r.lookPath(r.BinaryName())
	if err != nil {
		return nil
	}
	return []string{p}
}

// isRegularFile reports whether p exists and is not a directory.
func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether p currently refers to an existing regular file.
// Used to re-validate memoized or metadata-declared paths.
func Exists(p string) bool {
	return p != "" && isRegularFile(p)
}
