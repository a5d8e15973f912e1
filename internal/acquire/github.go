// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultOwner is the GitHub owner publishing checker releases.
	DefaultOwner = "code-yeongyu"

	// DefaultRepo is the GitHub repository publishing checker releases.
	DefaultRepo = "go-claude-code-comment-checker"

	// DefaultBaseURL is the GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	// releasesPerPage bounds the single release listing request.
	releasesPerPage = 30

	// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
	maxJSONResponseBytes = 10 << 20
)

// ErrReleaseNotFound is returned when a requested release tag does not exist.
var ErrReleaseNotFound = errors.New("release not found")

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit   int
		ResetAt time.Time
	}

	// Release is a published checker release.
	Release struct {
		TagName    string
		Prerelease bool
		Draft      bool
		Assets     []Asset
	}

	// Asset is one downloadable file of a Release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
		Size               int64
	}

	// githubRelease is the JSON wire format for a GitHub Release API response.
	githubRelease struct {
		TagName    string        `json:"tag_name"`
		Prerelease bool          `json:"prerelease"`
		Draft      bool          `json:"draft"`
		Assets     []githubAsset `json:"assets"`
	}

	// githubAsset is the JSON wire format for a GitHub Release asset.
	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// ReleaseSource lists releases and streams their assets. GitHubClient is
	// the production implementation.
	ReleaseSource interface {
		LatestRelease(ctx context.Context) (*Release, error)
		GetReleaseByTag(ctx context.Context, tag string) (*Release, error)
		DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error)
	}

	// GitHubClient queries the GitHub Releases API of the checker repository.
	GitHubClient struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string
		token      string
		userAgent  string
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit of %d exceeded (resets at %s)",
		e.Limit, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		if base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets a GitHub token. Authenticated requests get 5000 requests/hour.
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		g.userAgent = ua
	}
}

// WithRepo overrides the release repository. Empty values keep the defaults.
func WithRepo(owner, repo string) ClientOption {
	return func(g *GitHubClient) {
		if owner != "" {
			g.owner = owner
		}
		if repo != "" {
			g.repo = repo
		}
	}
}

// NewGitHubClient creates a GitHubClient pointed at the default checker repository.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		owner:      DefaultOwner,
		repo:       DefaultRepo,
		baseURL:    DefaultBaseURL,
		userAgent:  "checkhook/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease returns the highest stable (non-draft, non-prerelease) release
// by semantic version from the most recent page of releases.
func (c *GitHubClient) LatestRelease(ctx context.Context) (*Release, error) {
	listURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, c.owner, c.repo, releasesPerPage)

	resp, err := c.doRequest(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing releases: unexpected status %d", resp.StatusCode)
	}

	var raw []githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("listing releases: decoding response: %w", err)
	}

	stable := make([]Release, 0, len(raw))
	for _, gr := range raw {
		r := toRelease(gr)
		if r.Draft || r.Prerelease || !semver.IsValid(canonicalTag(r.TagName)) {
			continue
		}
		stable = append(stable, r)
	}
	if len(stable) == 0 {
		return nil, ErrReleaseNotFound
	}

	slices.SortStableFunc(stable, func(a, b Release) int {
		return semver.Compare(canonicalTag(b.TagName), canonicalTag(a.TagName))
	})
	return &stable[0], nil
}

// GetReleaseByTag fetches a single release by its Git tag (e.g., "v0.4.1").
// Returns ErrReleaseNotFound if the tag does not correspond to a release.
func (c *GitHubClient) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	tagURL := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.baseURL, c.owner, c.repo, url.PathEscape(tag))

	resp, err := c.doRequest(ctx, tagURL)
	if err != nil {
		return nil, fmt.Errorf("getting release %s: %w", tag, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrReleaseNotFound, tag)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getting release %s: unexpected status %d", tag, resp.StatusCode)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("getting release %s: decoding response: %w", tag, err)
	}

	r := toRelease(gr)
	return &r, nil
}

// DownloadAsset streams the file at assetURL. The caller closes the body.
func (c *GitHubClient) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("downloading asset %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *GitHubClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// The token only goes to the API host; asset downloads may redirect to a CDN.
	if c.token != "" && sameHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkRateLimit returns a RateLimitError when a request was refused and
// X-RateLimit-Remaining is zero. A 200 that used the last allowed call succeeded.
func checkRateLimit(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	rem, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Missing or malformed header means no limit information.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.
	return &RateLimitError{Limit: limit, ResetAt: time.Unix(resetUnix, 0)}
}

func toRelease(gr githubRelease) Release {
	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset(ga))
	}
	return Release{
		TagName:    gr.TagName,
		Prerelease: gr.Prerelease,
		Draft:      gr.Draft,
		Assets:     assets,
	}
}

// canonicalTag adds the "v" prefix the semver package requires.
func canonicalTag(tag string) string {
	if strings.HasPrefix(tag, "v") {
		return tag
	}
	return "v" + tag
}

func sameHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(reqURL.Host, base.Host)
}

// redactURL strips query parameters and fragments for safe inclusion in errors.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
