// SPDX-License-Identifier: MPL-2.0

package checker

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/checkhook/checkhook/internal/acquire"
	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/internal/locate"
	"github.com/checkhook/checkhook/internal/resolve"
)

//nolint:gochecknoglobals // process-wide default, replaceable in tests
var (
	defaultMu      sync.Mutex
	defaultService *Service
)

type (
	// Service is the facade hook hosts talk to.
	Service struct {
		resolver    *locate.Resolver
		coordinator *resolve.Coordinator
		invoker     *Invoker
		logger      *log.Logger
	}

	// Settings are the inputs a Service is assembled from.
	Settings struct {
		// BinaryPath, when set, is searched before anything else.
		BinaryPath string
		// Scope is the package scope of the installed checker packages.
		Scope string
		// PackageRoots are extra directories to walk up from.
		PackageRoots []string
		// SearchPath enables a PATH lookup as the last search step.
		SearchPath bool
		// Timeout bounds each checker run. Zero disables it.
		Timeout time.Duration

		// Download enables on-demand acquisition.
		Download bool
		// CacheDir is where acquired binaries live.
		CacheDir string
		// Version pins the release to acquire. Empty means latest stable.
		Version string
		// NegativeTTL suppresses acquisition after a failure.
		NegativeTTL time.Duration
		// GitHubToken authenticates release queries.
		GitHubToken string
		// APIBaseURL overrides the GitHub API endpoint.
		APIBaseURL string

		Logger *log.Logger
	}
)

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Scope:       locate.DefaultScope,
		Timeout:     DefaultTimeout,
		Download:    true,
		CacheDir:    acquire.DefaultCacheDir(),
		NegativeTTL: resolve.DefaultNegativeTTL,
		APIBaseURL:  acquire.DefaultBaseURL,
	}
}

// NewService wires the resolver, coordinator and invoker described by s.
func NewService(s Settings) *Service {
	logger := s.Logger
	if logger == nil {
		logger = diag.Discard()
	}

	s.Logger = logger
	acq := NewAcquirer(s)

	resolver := locate.NewResolver(
		locate.WithConfiguredPath(s.BinaryPath),
		locate.WithScope(s.Scope),
		locate.WithPackageLocator(locate.DefaultNodeModules(s.PackageRoots...)),
		locate.WithCache(acq),
		locate.WithSearchPath(s.SearchPath),
		locate.WithLogger(logger),
	)

	coordOpts := []resolve.Option{
		resolve.WithNegativeTTL(s.NegativeTTL),
		resolve.WithLogger(logger),
	}
	if s.Download {
		coordOpts = append(coordOpts,
			resolve.WithAcquirer(acq),
			resolve.WithFailureMarker(filepath.Join(acq.CacheDir(), resolve.FailureMarkerName)),
		)
	}

	return NewServiceWith(resolver,
		resolve.NewCoordinator(resolver, coordOpts...),
		NewInvoker(WithTimeout(s.Timeout), WithInvokerLogger(logger)),
		logger,
	)
}

// NewAcquirer builds the GitHub-backed acquirer described by s. NewService
// uses it internally; callers that need the acquisition error itself, such as
// an explicit install, use it directly.
func NewAcquirer(s Settings) *acquire.Acquirer {
	clientOpts := []acquire.ClientOption{acquire.WithToken(s.GitHubToken)}
	if s.APIBaseURL != "" {
		clientOpts = append(clientOpts, acquire.WithBaseURL(s.APIBaseURL))
	}
	return acquire.New(
		acquire.WithSource(acquire.NewGitHubClient(clientOpts...)),
		acquire.WithCacheDir(s.CacheDir),
		acquire.WithVersion(s.Version),
		acquire.WithLogger(s.Logger),
	)
}

// NewServiceWith assembles a Service from already built parts.
func NewServiceWith(resolver *locate.Resolver, coordinator *resolve.Coordinator, invoker *Invoker, logger *log.Logger) *Service {
	if logger == nil {
		logger = diag.Discard()
	}
	return &Service{
		resolver:    resolver,
		coordinator: coordinator,
		invoker:     invoker,
		logger:      logger,
	}
}

// Default returns the process-wide Service, building it from DefaultSettings
// and the diagnostics environment toggle on first use.
func Default() *Service {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultService == nil {
		s := DefaultSettings()
		s.Logger = diag.New(diag.Options{Enabled: diag.EnabledFromEnv()})
		defaultService = NewService(s)
	}
	return defaultService
}

// SetDefault replaces the process-wide Service and returns a function that
// restores the previous one.
func SetDefault(s *Service) (restore func()) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultService
	defaultService = s
	return func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		defaultService = prev
	}
}

// ResolveAsync resolves the checker path, acquiring it if allowed.
func (s *Service) ResolveAsync(ctx context.Context) (string, bool) {
	return s.coordinator.ResolveAsync(ctx)
}

// ResolveSync resolves the checker path without acquiring.
func (s *Service) ResolveSync() (string, bool) {
	return s.coordinator.ResolveSync()
}

// StartBackgroundInit warms the path cache without blocking.
func (s *Service) StartBackgroundInit() {
	s.coordinator.StartBackgroundInit()
}

// Candidates lists every location currently holding a checker, in search order.
func (s *Service) Candidates() []locate.Candidate {
	return s.resolver.All()
}

// IsAvailable reports whether a checker can be run right now without
// acquiring one.
func (s *Service) IsAvailable() bool {
	p, ok := s.coordinator.ResolveSync()
	return ok && locate.Exists(p)
}

// EnsureAvailable reports whether a checker is available, acquiring one if
// necessary.
func (s *Service) EnsureAvailable(ctx context.Context) bool {
	p, ok := s.coordinator.ResolveAsync(ctx)
	return ok && locate.Exists(p)
}

// Run checks payload with whatever checker is available without acquiring
// one. No checker means a clean result.
func (s *Service) Run(ctx context.Context, payload *HookInput) CheckResult {
	p, ok := s.coordinator.ResolveSync()
	if !ok {
		s.logger.Debug("comment-checker binary not found")
		return CheckResult{}
	}
	return s.invoker.Run(ctx, p, payload)
}

// RunWithPath checks payload with the checker at path.
func (s *Service) RunWithPath(ctx context.Context, path string, payload *HookInput) CheckResult {
	return s.invoker.Run(ctx, path, payload)
}
