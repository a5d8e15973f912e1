// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/checkhook/checkhook/internal/locate"
	"github.com/checkhook/checkhook/internal/testutil"
)

type (
	fakeLocator struct {
		mu    sync.Mutex
		path  string
		calls atomic.Int64
	}

	fakeAcquirer struct {
		path  string
		err   error
		gate  chan struct{}
		calls atomic.Int64
	}
)

func (f *fakeLocator) Locate() (locate.Candidate, bool) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path == "" {
		return locate.Candidate{}, false
	}
	return locate.Candidate{Kind: locate.KindPackage, Path: f.path}, true
}

func (f *fakeLocator) set(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = p
}

func (f *fakeAcquirer) Ensure(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.path, f.err
}

func writeBinary(t testutil.TB, dir string) string {
	t.Helper()
	return testutil.WriteExecutable(t, dir, "comment-checker", "exit 0")
}

func TestResolveAsync_SyncHitSkipsAcquisition(t *testing.T) {
	t.Parallel()

	bin := writeBinary(t, t.TempDir())
	loc := &fakeLocator{path: bin}
	acq := &fakeAcquirer{err: errors.New("should not be called")}
	c := NewCoordinator(loc, WithAcquirer(acq))

	got, ok := c.ResolveAsync(context.Background())
	if !ok || got != bin {
		t.Fatalf("ResolveAsync() = (%q, %v), want (%q, true)", got, ok, bin)
	}
	if n := acq.calls.Load(); n != 0 {
		t.Errorf("acquirer called %d times, want 0", n)
	}
}

func TestResolveAsync_StaleSyncHitFallsBackToAcquirer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	downloaded := writeBinary(t, dir)
	loc := &fakeLocator{path: filepath.Join(dir, "gone", "comment-checker")}
	acq := &fakeAcquirer{path: downloaded}
	c := NewCoordinator(loc, WithAcquirer(acq))

	got, ok := c.ResolveAsync(context.Background())
	if !ok || got != downloaded {
		t.Fatalf("ResolveAsync() = (%q, %v), want (%q, true)", got, ok, downloaded)
	}
	if n := acq.calls.Load(); n != 1 {
		t.Errorf("acquirer called %d times, want 1", n)
	}
}

func TestResolveAsync_MemoizesPositiveResult(t *testing.T) {
	t.Parallel()

	bin := writeBinary(t, t.TempDir())
	loc := &fakeLocator{}
	acq := &fakeAcquirer{path: bin}
	c := NewCoordinator(loc, WithAcquirer(acq))

	for range 5 {
		got, ok := c.ResolveAsync(context.Background())
		if !ok || got != bin {
			t.Fatalf("ResolveAsync() = (%q, %v), want (%q, true)", got, ok, bin)
		}
	}
	if n := loc.calls.Load(); n != 1 {
		t.Errorf("locator called %d times, want 1", n)
	}
	if n := acq.calls.Load(); n != 1 {
		t.Errorf("acquirer called %d times, want 1", n)
	}

	// A later change on disk is not observed once memoized.
	loc.set(writeBinary(t, t.TempDir()))
	if got, _ := c.ResolveSync(); got != bin {
		t.Errorf("ResolveSync() = %q, want memoized %q", got, bin)
	}
}

func TestResolveAsync_AbsentWithoutAcquirer(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(&fakeLocator{})
	if got, ok := c.ResolveAsync(context.Background()); ok {
		t.Fatalf("ResolveAsync() = (%q, true), want absent", got)
	}
}

func TestResolveAsync_FailureIsNotMemoized(t *testing.T) {
	t.Parallel()

	bin := writeBinary(t, t.TempDir())
	loc := &fakeLocator{}
	acq := &fakeAcquirer{err: errors.New("offline")}
	c := NewCoordinator(loc, WithAcquirer(acq), WithNegativeTTL(0))

	if _, ok := c.ResolveAsync(context.Background()); ok {
		t.Fatal("first ResolveAsync() should be absent")
	}

	// The package gets installed between attempts.
	loc.set(bin)
	got, ok := c.ResolveAsync(context.Background())
	if !ok || got != bin {
		t.Fatalf("second ResolveAsync() = (%q, %v), want (%q, true)", got, ok, bin)
	}
	if n := c.Attempts(); n != 2 {
		t.Errorf("Attempts() = %d, want 2", n)
	}
}

func TestResolveAsync_NegativeTTLSuppressesAcquisition(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(time.Time{})

	loc := &fakeLocator{}
	acq := &fakeAcquirer{err: errors.New("rate limited")}
	c := NewCoordinator(loc, WithAcquirer(acq), WithNegativeTTL(time.Minute), WithClock(clock.Now))

	for range 3 {
		if _, ok := c.ResolveAsync(context.Background()); ok {
			t.Fatal("ResolveAsync() should be absent")
		}
	}
	if n := acq.calls.Load(); n != 1 {
		t.Fatalf("acquirer called %d times within TTL, want 1", n)
	}
	if n := loc.calls.Load(); n != 3 {
		t.Errorf("locator called %d times, want 3", n)
	}

	clock.Advance(time.Minute + time.Second)
	if _, ok := c.ResolveAsync(context.Background()); ok {
		t.Fatal("ResolveAsync() should be absent")
	}
	if n := acq.calls.Load(); n != 2 {
		t.Errorf("acquirer called %d times after TTL, want 2", n)
	}

	c.Reset()
	_, _ = c.ResolveAsync(context.Background())
	if n := acq.calls.Load(); n != 3 {
		t.Errorf("acquirer called %d times after Reset, want 3", n)
	}
}

func TestResolveAsync_ConcurrentCallersShareOneAttempt(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 32).Draw(rt, "callers")
		succeed := rapid.Bool().Draw(rt, "succeed")

		dir, err := os.MkdirTemp("", "resolve-prop-")
		if err != nil {
			rt.Fatalf("MkdirTemp() error = %v", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()

		acq := &fakeAcquirer{gate: make(chan struct{})}
		if succeed {
			acq.path = writeBinary(rt, dir)
		} else {
			acq.err = errors.New("network down")
		}
		c := NewCoordinator(&fakeLocator{}, WithAcquirer(acq))

		type outcome struct {
			path string
			ok   bool
		}
		results := make([]outcome, n)
		var done sync.WaitGroup
		for i := range n {
			done.Go(func() {
				p, ok := c.ResolveAsync(context.Background())
				results[i] = outcome{p, ok}
			})
		}

		// The gate holds the attempt open until every caller has joined it.
		deadline := time.Now().Add(10 * time.Second)
		for c.Waiters() < int64(n) {
			if time.Now().After(deadline) {
				close(acq.gate)
				rt.Fatalf("only %d of %d callers attached", c.Waiters(), n)
			}
			time.Sleep(time.Millisecond)
		}
		close(acq.gate)
		done.Wait()

		if got := c.Attempts(); got != 1 {
			rt.Fatalf("Attempts() = %d for %d callers, want 1", got, n)
		}
		if got := acq.calls.Load(); got != 1 {
			rt.Fatalf("acquirer called %d times for %d callers, want 1", got, n)
		}
		want := outcome{}
		if succeed {
			want = outcome{acq.path, true}
		}
		for i, r := range results {
			if r != want {
				rt.Fatalf("caller %d got %+v, want %+v", i, r, want)
			}
		}
	})
}

func TestResolveAsync_FailureMarkerSharedAcrossCoordinators(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(time.Time{})
	marker := filepath.Join(t.TempDir(), "cache", FailureMarkerName)
	acq := &fakeAcquirer{err: errors.New("502 bad gateway")}

	// Each coordinator stands in for one short-lived hook process.
	newProcess := func() *Coordinator {
		return NewCoordinator(&fakeLocator{}, WithAcquirer(acq),
			WithNegativeTTL(time.Minute), WithClock(clock.Now), WithFailureMarker(marker))
	}

	for range 3 {
		if _, ok := newProcess().ResolveAsync(context.Background()); ok {
			t.Fatal("ResolveAsync() should be absent")
		}
	}
	if n := acq.calls.Load(); n != 1 {
		t.Fatalf("acquirer called %d times across processes within TTL, want 1", n)
	}

	clock.Advance(time.Minute + time.Second)
	_, _ = newProcess().ResolveAsync(context.Background())
	if n := acq.calls.Load(); n != 2 {
		t.Fatalf("acquirer called %d times after TTL, want 2", n)
	}

	acq.err = nil
	acq.path = writeBinary(t, t.TempDir())
	clock.Advance(time.Minute + time.Second)
	if _, ok := newProcess().ResolveAsync(context.Background()); !ok {
		t.Fatal("ResolveAsync() should succeed once the acquirer recovers")
	}
	if _, err := os.Stat(marker); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("marker should be removed after success, Stat() error = %v", err)
	}
}

func TestResolveAsync_MalformedFailureMarkerIgnored(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), FailureMarkerName)
	if err := os.WriteFile(marker, []byte("yesterday"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	acq := &fakeAcquirer{err: errors.New("offline")}
	c := NewCoordinator(&fakeLocator{}, WithAcquirer(acq), WithFailureMarker(marker))

	_, _ = c.ResolveAsync(context.Background())
	if n := acq.calls.Load(); n != 1 {
		t.Errorf("acquirer called %d times, want 1", n)
	}
}

func TestResolveAsync_CancelledCallerStillPrimesCache(t *testing.T) {
	t.Parallel()

	bin := writeBinary(t, t.TempDir())
	acq := &fakeAcquirer{path: bin, gate: make(chan struct{})}
	c := NewCoordinator(&fakeLocator{}, WithAcquirer(acq))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan bool, 1)
	go func() {
		_, ok := c.ResolveAsync(ctx)
		errCh <- ok
	}()
	for acq.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if ok := <-errCh; ok {
		t.Fatal("cancelled ResolveAsync() should report absent")
	}

	close(acq.gate)
	got, ok := c.ResolveAsync(context.Background())
	if !ok || got != bin {
		t.Fatalf("ResolveAsync() = (%q, %v), want (%q, true)", got, ok, bin)
	}
	if n := acq.calls.Load(); n != 1 {
		t.Errorf("acquirer called %d times, want 1", n)
	}
}

func TestResolveSync_NeverAcquires(t *testing.T) {
	t.Parallel()

	acq := &fakeAcquirer{path: "/should/not/be/used"}
	loc := &fakeLocator{}
	c := NewCoordinator(loc, WithAcquirer(acq))

	if got, ok := c.ResolveSync(); ok {
		t.Fatalf("ResolveSync() = (%q, true), want absent", got)
	}
	bin := writeBinary(t, t.TempDir())
	loc.set(bin)
	if got, ok := c.ResolveSync(); !ok || got != bin {
		t.Fatalf("ResolveSync() = (%q, %v), want (%q, true)", got, ok, bin)
	}
	if n := acq.calls.Load(); n != 0 {
		t.Errorf("acquirer called %d times, want 0", n)
	}
	if n := c.Attempts(); n != 0 {
		t.Errorf("Attempts() = %d, want 0", n)
	}
}

func TestStartBackgroundInit_Idempotent(t *testing.T) {
	t.Parallel()

	bin := writeBinary(t, t.TempDir())
	acq := &fakeAcquirer{path: bin, gate: make(chan struct{})}
	c := NewCoordinator(&fakeLocator{}, WithAcquirer(acq))

	c.StartBackgroundInit()
	c.StartBackgroundInit()
	for acq.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(acq.gate)

	// Attaches to the pending background attempt rather than starting one.
	got, ok := c.ResolveAsync(context.Background())
	if !ok || got != bin {
		t.Fatalf("ResolveAsync() = (%q, %v), want (%q, true)", got, ok, bin)
	}
	c.StartBackgroundInit()

	if n := c.Attempts(); n != 1 {
		t.Errorf("Attempts() = %d, want 1", n)
	}
	if n := acq.calls.Load(); n != 1 {
		t.Errorf("acquirer called %d times, want 1", n)
	}
}
