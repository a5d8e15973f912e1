// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/pkg/platform"
)

const (
	// BinaryBaseName is the checker executable name without platform suffix.
	BinaryBaseName = "comment-checker"

	// checksumsAssetName is the GoReleaser checksum manifest.
	checksumsAssetName = "checksums.txt"

	// cacheAppDir is the directory created under the user cache root.
	cacheAppDir = "checkhook"
)

// ErrAssetNotFound indicates a release lacks the archive or checksum manifest.
var ErrAssetNotFound = errors.New("release asset not found")

type (
	// Acquirer downloads the checker into a cache directory once and serves
	// the cached copy afterwards.
	Acquirer struct {
		source   ReleaseSource
		cacheDir string
		version  string
		goos     string
		goarch   string
		logger   *log.Logger

		// mu serializes Ensure so two callers never race on the same temp files.
		mu sync.Mutex
	}

	// Option configures an Acquirer during construction.
	Option func(*Acquirer)
)

// WithSource overrides the release source (default: NewGitHubClient()).
func WithSource(s ReleaseSource) Option {
	return func(a *Acquirer) {
		a.source = s
	}
}

// WithCacheDir overrides the cache root (default: DefaultCacheDir()).
func WithCacheDir(dir string) Option {
	return func(a *Acquirer) {
		if dir != "" {
			a.cacheDir = dir
		}
	}
}

// WithVersion pins the release tag to download. Empty means latest stable.
func WithVersion(v string) Option {
	return func(a *Acquirer) {
		a.version = v
	}
}

// WithPlatform overrides the target GOOS/GOARCH, mainly for tests.
func WithPlatform(goos, goarch string) Option {
	return func(a *Acquirer) {
		a.goos = goos
		a.goarch = goarch
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// DefaultCacheDir returns <user cache dir>/checkhook, falling back to the
// temp directory when the platform has no cache root.
func DefaultCacheDir() string {
	root, err := os.UserCacheDir()
	if err != nil {
		root = os.TempDir()
	}
	return filepath.Join(root, cacheAppDir)
}

// New creates an Acquirer for the running platform.
func New(opts ...Option) *Acquirer {
	a := &Acquirer{
		cacheDir: DefaultCacheDir(),
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		logger:   diag.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.source == nil {
		a.source = NewGitHubClient()
	}
	return a
}

// CacheDir is the cache root the acquirer installs into.
func (a *Acquirer) CacheDir() string {
	return a.cacheDir
}

// BinaryPath is where the cached executable lives, whether or not it exists yet.
func (a *Acquirer) BinaryPath() string {
	return filepath.Join(a.cacheDir, "bin", platform.ExecutableName(a.goos, BinaryBaseName))
}

// CachedPath returns BinaryPath when a regular file exists there. It never
// downloads.
func (a *Acquirer) CachedPath() (string, bool) {
	p := a.BinaryPath()
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Ensure returns the cached binary, downloading and installing it first when
// absent.
func (a *Acquirer) Ensure(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.CachedPath(); ok {
		return p, nil
	}

	if _, err := platform.KeyFor(a.goos, a.goarch); err != nil {
		return "", err
	}

	release, err := a.resolveRelease(ctx)
	if err != nil {
		return "", err
	}
	a.logger.Debug("acquiring checker", "release", release.TagName, "cache", a.cacheDir)

	archiveName := ArchiveName(release.TagName, a.goos, a.goarch)
	archiveAsset, err := findAsset(release.Assets, archiveName)
	if err != nil {
		return "", err
	}
	checksumsAsset, err := findAsset(release.Assets, checksumsAssetName)
	if err != nil {
		return "", err
	}

	target := a.BinaryPath()
	targetDir := filepath.Dir(target)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	expected, err := a.expectedHash(ctx, checksumsAsset, archiveName)
	if err != nil {
		return "", err
	}

	// Temp files live next to the target so the final rename stays on one filesystem.
	archivePath, err := a.download(ctx, archiveAsset.BrowserDownloadURL, targetDir, archiveName)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(archivePath) }()

	if err := VerifyFile(archivePath, expected); err != nil {
		return "", err
	}

	tmpBinary, err := extractBinary(archivePath, platform.ExecutableName(a.goos, BinaryBaseName), targetDir)
	if err != nil {
		return "", err
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpBinary)
		}
	}()

	if err := os.Chmod(tmpBinary, 0o755); err != nil {
		return "", fmt.Errorf("setting binary permissions: %w", err)
	}
	if err := os.Rename(tmpBinary, target); err != nil {
		return "", fmt.Errorf("installing binary: %w", err)
	}
	renamed = true

	a.logger.Debug("checker installed", "path", target)
	return target, nil
}

// ArchiveName builds the GoReleaser archive name for a release tag, e.g.
// comment-checker_0.4.1_linux_amd64.tar.gz. Windows archives are zips.
func ArchiveName(tag, goos, goarch string) string {
	ext := ".tar.gz"
	if goos == platform.Windows {
		ext = ".zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s%s", BinaryBaseName, strings.TrimPrefix(tag, "v"), goos, goarch, ext)
}

func (a *Acquirer) resolveRelease(ctx context.Context) (*Release, error) {
	if a.version == "" {
		r, err := a.source.LatestRelease(ctx)
		if err != nil {
			return nil, fmt.Errorf("finding latest release: %w", err)
		}
		return r, nil
	}

	r, err := a.source.GetReleaseByTag(ctx, canonicalTag(a.version))
	if err != nil {
		return nil, fmt.Errorf("fetching release %s: %w", a.version, err)
	}
	return r, nil
}

func (a *Acquirer) expectedHash(ctx context.Context, asset *Asset, archiveName string) (string, error) {
	body, err := a.source.DownloadAsset(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return "", fmt.Errorf("downloading checksums: %w", err)
	}
	defer func() { _ = body.Close() }() // read-only response body

	sums, err := ParseChecksums(body)
	if err != nil {
		return "", fmt.Errorf("parsing checksums: %w", err)
	}
	hash, ok := sums[archiveName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrChecksumNotListed, archiveName)
	}
	return hash, nil
}

// download writes the asset into a temp file in dir whose name keeps the
// archive extension, so extractBinary can pick the right format.
func (a *Acquirer) download(ctx context.Context, assetURL, dir, archiveName string) (_ string, err error) {
	body, err := a.source.DownloadAsset(ctx, assetURL)
	if err != nil {
		return "", fmt.Errorf("downloading archive: %w", err)
	}
	defer func() { _ = body.Close() }() // read-only response body

	ext := ".tar.gz"
	if strings.HasSuffix(archiveName, ".zip") {
		ext = ".zip"
	}
	tmp, err := os.CreateTemp(dir, "comment-checker-download-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	return tmp.Name(), nil
}

func findAsset(assets []Asset, name string) (*Asset, error) {
	for i := range assets {
		if assets[i].Name == name {
			return &assets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAssetNotFound, name)
}
