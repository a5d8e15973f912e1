// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/internal/locate"
)

const (
	// DefaultNegativeTTL is how long acquisition is skipped after a failed attempt.
	DefaultNegativeTTL = time.Minute

	// FailureMarkerName is the file, inside the acquirer's cache directory,
	// recording the last failed acquisition for every process sharing the cache.
	FailureMarkerName = ".last-failure"

	// flightKey is the single singleflight key; there is only one binary to resolve.
	flightKey = "checker"
)

type (
	// Locator performs the synchronous, download-free search.
	// *locate.Resolver satisfies it.
	Locator interface {
		Locate() (locate.Candidate, bool)
	}

	// Acquirer fetches the binary when no local copy exists.
	// *acquire.Acquirer satisfies it.
	Acquirer interface {
		Ensure(ctx context.Context) (string, error)
	}

	// Coordinator resolves the checker path at most once at a time and
	// memoizes the first positive result.
	//
	// Lifecycle: created at process start, mutated only by its own methods,
	// never torn down. Reset exists for tests.
	Coordinator struct {
		locator     Locator
		acquirer    Acquirer
		logger      *log.Logger
		negativeTTL time.Duration
		now         func() time.Time
		marker      string

		flight singleflight.Group

		mu          sync.Mutex
		resolved    string
		lastFailure time.Time

		attempts  atomic.Int64
		waiters   atomic.Int64
		bgPending atomic.Bool
	}

	// Option configures a Coordinator.
	Option func(*Coordinator)

	// attemptResult is the value shared by all callers attached to one flight.
	attemptResult struct {
		path string
		ok   bool
	}
)

// WithAcquirer enables on-demand acquisition. Without it ResolveAsync only searches.
func WithAcquirer(a Acquirer) Option {
	return func(c *Coordinator) {
		c.acquirer = a
	}
}

// WithNegativeTTL sets the cooldown after a failed acquisition. Zero disables it.
func WithNegativeTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		c.negativeTTL = d
	}
}

// WithFailureMarker persists the failure cooldown in the file at path so that
// short-lived processes sharing a cache directory honor each other's failures.
func WithFailureMarker(path string) Option {
	return func(c *Coordinator) {
		c.marker = path
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator over locator.
func NewCoordinator(locator Locator, opts ...Option) *Coordinator {
	c := &Coordinator{
		locator:     locator,
		logger:      diag.Discard(),
		negativeTTL: DefaultNegativeTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveAsync returns the checker path, acquiring it if necessary. Callers
// arriving while an attempt is in flight attach to it instead of starting
// another. Cancelling ctx stops this caller from waiting; the shared attempt
// keeps running and still primes the cache.
func (c *Coordinator) ResolveAsync(ctx context.Context) (string, bool) {
	if p, ok := c.memo(); ok {
		return p, true
	}

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.resolveOnce(context.WithoutCancel(ctx)), nil
	})
	c.waiters.Add(1)
	defer c.waiters.Add(-1)

	select {
	case res := <-ch:
		r, _ := res.Val.(attemptResult)
		return r.path, r.ok
	case <-ctx.Done():
		c.logger.Debug("resolution wait cancelled", "err", ctx.Err())
		return "", false
	}
}

// ResolveSync returns the memoized path, or runs the locator without ever
// acquiring. A sync hit is not memoized.
func (c *Coordinator) ResolveSync() (string, bool) {
	if p, ok := c.memo(); ok {
		return p, true
	}
	if cand, ok := c.locator.Locate(); ok && locate.Exists(cand.Path) {
		return cand.Path, true
	}
	return "", false
}

// StartBackgroundInit begins resolution without blocking. Calling it again
// while an attempt is pending, or after a path is memoized, does nothing.
// The outcome is only logged.
func (c *Coordinator) StartBackgroundInit() {
	if _, ok := c.memo(); ok {
		return
	}
	if !c.bgPending.CompareAndSwap(false, true) {
		return
	}

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.resolveOnce(context.Background()), nil
	})

	go func() {
		defer c.bgPending.Store(false)
		res := <-ch
		r, _ := res.Val.(attemptResult)
		if r.ok {
			c.logger.Debug("background init complete", "path", r.path)
			return
		}
		c.logger.Debug("background init complete", "path", "no binary")
	}()
}

// Attempts reports how many resolution attempts have run.
func (c *Coordinator) Attempts() int64 {
	return c.attempts.Load()
}

// Waiters reports how many ResolveAsync callers are attached to the attempt
// in flight.
func (c *Coordinator) Waiters() int64 {
	return c.waiters.Load()
}

// Reset forgets the memoized path and failure cooldown, including the
// persisted marker.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = ""
	c.lastFailure = time.Time{}
	c.clearMarker()
}

// resolveOnce is one resolution attempt: search, then acquire. Every failure
// is absorbed here and reported as absent.
func (c *Coordinator) resolveOnce(ctx context.Context) attemptResult {
	if p, ok := c.memo(); ok {
		return attemptResult{path: p, ok: true}
	}
	c.attempts.Add(1)

	if cand, ok := c.locator.Locate(); ok {
		if locate.Exists(cand.Path) {
			c.store(cand.Path)
			c.logger.Debug("using sync-resolved path", "path", cand.Path, "kind", cand.Kind)
			return attemptResult{path: cand.Path, ok: true}
		}
		c.logger.Debug("sync-resolved path vanished", "path", cand.Path)
	}

	if c.acquirer == nil {
		c.logger.Debug("no binary available", "reason", "acquisition disabled")
		return attemptResult{}
	}
	if until, cooling := c.coolingDown(); cooling {
		c.logger.Debug("skipping acquisition after recent failure", "retry_after", until)
		return attemptResult{}
	}

	c.logger.Debug("triggering lazy download")
	p, err := c.acquirer.Ensure(ctx)
	if err != nil || p == "" {
		c.markFailure()
		c.logger.Debug("no binary available", "err", err)
		return attemptResult{}
	}

	c.store(p)
	c.logger.Debug("using downloaded path", "path", p)
	return attemptResult{path: p, ok: true}
}

func (c *Coordinator) memo() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved, c.resolved != ""
}

func (c *Coordinator) store(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = p
	c.lastFailure = time.Time{}
	c.clearMarker()
}

func (c *Coordinator) markFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFailure = c.now()
	if c.marker == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.marker), 0o755); err != nil {
		c.logger.Debug("cannot persist failure marker", "path", c.marker, "err", err)
		return
	}
	stamp := c.lastFailure.UTC().Format(time.RFC3339Nano)
	if err := os.WriteFile(c.marker, []byte(stamp+"\n"), 0o644); err != nil {
		c.logger.Debug("cannot persist failure marker", "path", c.marker, "err", err)
	}
}

// coolingDown reports whether acquisition is suppressed and until when. The
// newer of the in-memory failure and the persisted marker counts.
func (c *Coordinator) coolingDown() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.negativeTTL <= 0 {
		return time.Time{}, false
	}
	last := c.lastFailure
	if persisted, ok := c.readMarker(); ok && persisted.After(last) {
		last = persisted
	}
	if last.IsZero() {
		return time.Time{}, false
	}
	until := last.Add(c.negativeTTL)
	return until, c.now().Before(until)
}

// readMarker returns the failure time recorded in the marker file. A missing
// or unreadable marker means no recorded failure.
func (c *Coordinator) readMarker() (time.Time, bool) {
	if c.marker == "" {
		return time.Time{}, false
	}
	data, err := os.ReadFile(c.marker)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("cannot read failure marker", "path", c.marker, "err", err)
		}
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		c.logger.Debug("ignoring malformed failure marker", "path", c.marker, "err", err)
		return time.Time{}, false
	}
	return t, true
}

// clearMarker removes the persisted failure. Callers hold c.mu.
func (c *Coordinator) clearMarker() {
	if c.marker == "" {
		return
	}
	if err := os.Remove(c.marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("cannot remove failure marker", "path", c.marker, "err", err)
	}
}
