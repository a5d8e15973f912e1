// SPDX-License-Identifier: MPL-2.0

package checker

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/checkhook/checkhook/internal/acquire"
	"github.com/checkhook/checkhook/internal/locate"
	"github.com/checkhook/checkhook/internal/resolve"
	"github.com/checkhook/checkhook/internal/testutil"
	"github.com/checkhook/checkhook/pkg/platform"
)

// memorySource is an in-memory release source serving one release.
type memorySource struct {
	release acquire.Release
	files   map[string][]byte
	lists   atomic.Int32
	err     error
}

func (m *memorySource) LatestRelease(context.Context) (*acquire.Release, error) {
	m.lists.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	r := m.release
	return &r, nil
}

func (m *memorySource) GetReleaseByTag(_ context.Context, tag string) (*acquire.Release, error) {
	if tag != m.release.TagName {
		return nil, acquire.ErrReleaseNotFound
	}
	r := m.release
	return &r, nil
}

func (m *memorySource) DownloadAsset(_ context.Context, assetURL string) (io.ReadCloser, error) {
	data, ok := m.files[assetURL]
	if !ok {
		return nil, fmt.Errorf("no asset %q", assetURL)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// newScriptRelease packages script as a release archive for the running platform.
func newScriptRelease(t *testing.T, script string) *memorySource {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	body := []byte("#!/bin/sh\n" + script + "\n")
	hdr := &tar.Header{Name: "comment-checker", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error = %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}

	archiveName := acquire.ArchiveName("v1.0.0", runtime.GOOS, runtime.GOARCH)
	sum := sha256.Sum256(buf.Bytes())
	checksums := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), archiveName)

	return &memorySource{
		release: acquire.Release{
			TagName: "v1.0.0",
			Assets: []acquire.Asset{
				{Name: archiveName, BrowserDownloadURL: "mem://" + archiveName},
				{Name: "checksums.txt", BrowserDownloadURL: "mem://checksums.txt"},
			},
		},
		files: map[string][]byte{
			"mem://" + archiveName:  buf.Bytes(),
			"mem://checksums.txt": []byte(checksums),
		},
	}
}

func newTestService(t *testing.T, src acquire.ReleaseSource, download bool) *Service {
	t.Helper()

	acq := acquire.New(acquire.WithSource(src), acquire.WithCacheDir(t.TempDir()))
	resolver := locate.NewResolver(
		locate.WithPackageLocator(&locate.NodeModules{Roots: []string{t.TempDir()}}),
		locate.WithSystemPaths(),
		locate.WithCache(acq),
	)
	var opts []resolve.Option
	if download {
		opts = append(opts, resolve.WithAcquirer(acq))
	}
	return NewServiceWith(resolver, resolve.NewCoordinator(resolver, opts...), NewInvoker(), nil)
}

func requireSupportedPlatform(t *testing.T) {
	t.Helper()
	testutil.SkipWithoutShell(t)
	if _, err := platform.CurrentKey(); err != nil {
		t.Skipf("skipping: %v", err)
	}
}

func TestService_AcquiresThenRuns(t *testing.T) {
	t.Parallel()
	requireSupportedPlatform(t)

	src := newScriptRelease(t, "cat >/dev/null\necho 'found a comment' >&2\nexit 2")
	svc := newTestService(t, src, true)

	if svc.IsAvailable() {
		t.Fatal("IsAvailable() = true before acquisition")
	}
	// Run never acquires.
	if got := svc.Run(context.Background(), samplePayload()); got.Flagged {
		t.Fatalf("Run() before acquisition = %+v, want clean", got)
	}
	if n := src.lists.Load(); n != 0 {
		t.Fatalf("release listed %d times by Run/IsAvailable, want 0", n)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := range callers {
		wg.Go(func() {
			results[i] = svc.EnsureAvailable(context.Background())
		})
	}
	wg.Wait()
	for i, ok := range results {
		if !ok {
			t.Fatalf("EnsureAvailable() caller %d = false", i)
		}
	}
	if n := src.lists.Load(); n != 1 {
		t.Errorf("release listed %d times, want 1", n)
	}

	if !svc.IsAvailable() {
		t.Error("IsAvailable() = false after acquisition")
	}
	got := svc.Run(context.Background(), samplePayload())
	if !got.Flagged || got.Message != "found a comment\n" {
		t.Errorf("Run() = %+v, want flagged", got)
	}

	path, ok := svc.ResolveSync()
	if !ok || filepath.Base(path) != "comment-checker" {
		t.Errorf("ResolveSync() = (%q, %v)", path, ok)
	}
	cands := svc.Candidates()
	if len(cands) != 1 || cands[0].Kind != locate.KindCache {
		t.Errorf("Candidates() = %+v, want one cache entry", cands)
	}
}

func TestService_AcquisitionFailureFailsOpen(t *testing.T) {
	t.Parallel()
	requireSupportedPlatform(t)

	src := &memorySource{err: errors.New("network unreachable")}
	svc := newTestService(t, src, true)

	if svc.EnsureAvailable(context.Background()) {
		t.Fatal("EnsureAvailable() = true, want false")
	}
	if _, ok := svc.ResolveAsync(context.Background()); ok {
		t.Fatal("ResolveAsync() should be absent")
	}
	if got := svc.Run(context.Background(), samplePayload()); got != (CheckResult{}) {
		t.Errorf("Run() = %+v, want zero result", got)
	}
}

func TestService_DownloadDisabled(t *testing.T) {
	t.Parallel()
	requireSupportedPlatform(t)

	src := newScriptRelease(t, "exit 2")
	svc := newTestService(t, src, false)

	if svc.EnsureAvailable(context.Background()) {
		t.Fatal("EnsureAvailable() = true with download disabled")
	}
	if n := src.lists.Load(); n != 0 {
		t.Errorf("release listed %d times, want 0", n)
	}
}

func TestService_RunWithPath(t *testing.T) {
	t.Parallel()
	testutil.SkipWithoutShell(t)

	path := writeScript(t, t.TempDir(), "cat >/dev/null\necho 'explicit' >&2\nexit 2")
	svc := newTestService(t, &memorySource{err: errors.New("unused")}, false)

	got := svc.RunWithPath(context.Background(), path, samplePayload())
	if !got.Flagged || got.Message != "explicit\n" {
		t.Errorf("RunWithPath() = %+v, want flagged", got)
	}
}

func TestSetDefault(t *testing.T) {
	// Not parallel: swaps process-wide state.
	svc := newTestService(t, &memorySource{err: errors.New("unused")}, false)
	restore := SetDefault(svc)
	if Default() != svc {
		t.Error("Default() did not return the replacement")
	}
	restore()
	if Default() == svc {
		t.Error("restore did not reinstate the previous default")
	}
}

func TestService_FailureCooldownSharedThroughCache(t *testing.T) {
	t.Parallel()
	requireSupportedPlatform(t)
	if runtime.GOOS == "darwin" {
		t.Skip("skipping: Homebrew paths may satisfy the search")
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	settings := Settings{
		Scope:        "@checkhook-test-absent",
		PackageRoots: []string{t.TempDir()},
		Download:     true,
		CacheDir:     t.TempDir(),
		NegativeTTL:  time.Minute,
		APIBaseURL:   srv.URL,
	}

	// Every hook event runs in a fresh process with its own Service.
	for i := range 3 {
		if p, ok := NewService(settings).ResolveAsync(context.Background()); ok {
			t.Fatalf("process %d: ResolveAsync() = %q, want absent", i, p)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("release API hit %d times within the cooldown, want 1", n)
	}
}
