// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/checkhook/checkhook/internal/acquire"
	"github.com/checkhook/checkhook/internal/config"
	"github.com/checkhook/checkhook/internal/issue"
	"github.com/checkhook/checkhook/internal/testutil"
	"github.com/checkhook/checkhook/pkg/platform"
)

const writeEvent = `{"session_id":"s1","tool_name":"Write","tool_input":{"file_path":"main.go","content":"// sets x\nx := 1"}}`

type (
	staticProvider struct {
		cfg *config.Config
		err error
	}

	cliResult struct {
		app    *App
		stdout string
		stderr string
		err    error
	}
)

// sourcedProvider reports a fixed source path like the file provider does.
type sourcedProvider struct {
	staticProvider
	source string
}

func (p sourcedProvider) LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error) {
	cfg, err := p.Load(ctx, opts)
	return cfg, p.source, err
}

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.cfg, nil
}

// isolatedConfig finds nothing outside what the test installs and never
// reaches the network.
func isolatedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Checker.Scope = "@checkhook-test-absent"
	cfg.Checker.SearchPath = false
	cfg.Acquire.Enabled = false
	cfg.Acquire.CacheDir = config.CacheDirPath(t.TempDir())
	return cfg
}

func runCLI(t *testing.T, provider config.Provider, stdin string, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{
		Config: provider,
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	root := newRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return cliResult{app: app, stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestCheck_ExitCodes(t *testing.T) {
	t.Parallel()
	testutil.SkipWithoutShell(t)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStderr string
	}{
		{name: "clean", body: "cat >/dev/null\nexit 0\n", wantCode: exitOK},
		{name: "flagged", body: "cat >/dev/null\necho 'COMMENT DETECTED: sets x' >&2\nexit 2\n", wantCode: exitBlocked, wantStderr: "COMMENT DETECTED"},
		{name: "crash fails open", body: "exit 1\n", wantCode: exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bin := testutil.WriteExecutable(t, t.TempDir(), "comment-checker", tt.body)
			cfg := isolatedConfig(t)
			cfg.Checker.BinaryPath = config.BinaryFilePath(bin)

			res := runCLI(t, staticProvider{cfg: cfg}, writeEvent, "check")
			if res.err != nil {
				t.Fatalf("check returned error: %v", res.err)
			}
			if res.app.exitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", res.app.exitCode, tt.wantCode, res.stderr)
			}
			if tt.wantStderr != "" && !strings.Contains(res.stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", res.stderr, tt.wantStderr)
			}
		})
	}
}

func TestCheck_BinaryFlag(t *testing.T) {
	t.Parallel()
	testutil.SkipWithoutShell(t)

	bin := testutil.WriteExecutable(t, t.TempDir(), "cc", "exit 2\n")
	res := runCLI(t, staticProvider{cfg: isolatedConfig(t)}, writeEvent, "check", "--binary", bin)
	if res.app.exitCode != exitBlocked {
		t.Errorf("exit code = %d, want %d", res.app.exitCode, exitBlocked)
	}
}

func TestCheck_FailsOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "no checker", stdin: writeEvent, args: []string{"check"}},
		{name: "missing binary flag", stdin: writeEvent, args: []string{"check", "--binary", filepath.Join(t.TempDir(), "gone")}},
		{name: "empty stdin", stdin: "", args: []string{"check"}},
		{name: "malformed stdin", stdin: "{not json", args: []string{"check", "--verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := runCLI(t, staticProvider{cfg: isolatedConfig(t)}, tt.stdin, tt.args...)
			if res.err != nil || res.app.exitCode != exitOK {
				t.Fatalf("check = (%d, %v), want clean exit", res.app.exitCode, res.err)
			}
		})
	}
}

func TestCheck_BrokenConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	res := runCLI(t, staticProvider{err: errors.New("bad config")}, "", "check", "--no-download")
	if res.err != nil || res.app.exitCode != exitOK {
		t.Fatalf("check = (%d, %v), want clean exit", res.app.exitCode, res.err)
	}
	if !strings.Contains(res.stderr, "bad config") {
		t.Errorf("stderr = %q, want the config error surfaced", res.stderr)
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stdin    string
		mutate   func(*config.Config)
		wantCode int
	}{
		{name: "blocks editor", stdin: `{"tool_name":"Bash","tool_input":{"command":"vim main.go"}}`, wantCode: exitBlocked},
		{name: "allows plain command", stdin: `{"tool_name":"Bash","tool_input":{"command":"go test ./..."}}`, wantCode: exitOK},
		{name: "ignores other tools", stdin: `{"tool_name":"Write","tool_input":{"command":"vim"}}`, wantCode: exitOK},
		{name: "malformed input", stdin: "nope", wantCode: exitOK},
		{
			name:     "disabled by config",
			stdin:    `{"tool_name":"Bash","tool_input":{"command":"vim main.go"}}`,
			mutate:   func(c *config.Config) { c.Guard.Disabled = true },
			wantCode: exitOK,
		},
		{
			name:     "configured allow pattern",
			stdin:    `{"tool_name":"Bash","tool_input":{"command":"vim --version"}}`,
			mutate:   func(c *config.Config) { c.Guard.AllowPatterns = []string{`^vim --version$`} },
			wantCode: exitOK,
		},
		{
			name:     "invalid configured pattern fails open",
			stdin:    `{"tool_name":"Bash","tool_input":{"command":"vim main.go"}}`,
			mutate:   func(c *config.Config) { c.Guard.AdditionalPatterns = []string{`(`} },
			wantCode: exitOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := isolatedConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			res := runCLI(t, staticProvider{cfg: cfg}, tt.stdin, "guard")
			if res.err != nil {
				t.Fatalf("guard returned error: %v", res.err)
			}
			if res.app.exitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", res.app.exitCode, tt.wantCode, res.stderr)
			}
			if tt.wantCode == exitBlocked && !strings.Contains(res.stderr, "interactive-bash-blocker") {
				t.Errorf("stderr = %q, want block message", res.stderr)
			}
		})
	}
}

func TestWhich(t *testing.T) {
	t.Parallel()

	bin := testutil.WriteExecutable(t, t.TempDir(), "comment-checker", "exit 0\n")
	cfg := isolatedConfig(t)
	cfg.Checker.BinaryPath = config.BinaryFilePath(bin)

	res := runCLI(t, staticProvider{cfg: cfg}, "", "which")
	if res.err != nil {
		t.Fatalf("which returned error: %v", res.err)
	}
	if !strings.Contains(res.stdout, bin) || !strings.Contains(res.stdout, "configured") {
		t.Errorf("stdout = %q, want path and kind", res.stdout)
	}
}

func TestWhich_NotFound(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "darwin" {
		t.Skip("Homebrew locations may hold a real checker")
	}

	res := runCLI(t, staticProvider{cfg: isolatedConfig(t)}, "", "which")
	var exitErr *ExitError
	if !errors.As(res.err, &exitErr) || exitErr.Code != exitFailure {
		t.Fatalf("which error = %v, want ExitError code %d", res.err, exitFailure)
	}
	if !errors.Is(res.err, errCheckerNotFound) {
		t.Errorf("which error = %v, want errCheckerNotFound", res.err)
	}
	if !strings.Contains(res.stderr, "checkhook install") {
		t.Errorf("stderr should carry the not-found help, got %q", res.stderr)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := isolatedConfig(t)
	cfg.Checker.Timeout = "5s"

	res := runCLI(t, staticProvider{cfg: cfg}, "", "config", "show")
	if res.err != nil {
		t.Fatalf("config show returned error: %v", res.err)
	}
	if !strings.Contains(res.stdout, `timeout: "5s"`) {
		t.Errorf("config show output missing loaded timeout:\n%s", res.stdout)
	}

	if !strings.Contains(res.stdout, "// source: built-in defaults") {
		t.Errorf("config show should name the defaults as source:\n%s", res.stdout)
	}

	res = runCLI(t, sourcedProvider{staticProvider: staticProvider{cfg: cfg}, source: "/etc/checkhook.cue"}, "", "config", "show")
	if !strings.Contains(res.stdout, "// source: /etc/checkhook.cue") {
		t.Errorf("config show should name the loaded file:\n%s", res.stdout)
	}

	res = runCLI(t, staticProvider{cfg: cfg}, "", "config", "show", "--defaults")
	if !strings.Contains(res.stdout, `timeout: "30s"`) {
		t.Errorf("config show --defaults output missing default timeout:\n%s", res.stdout)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	t.Setenv(envGitHubToken, "tok")

	cfg := config.DefaultConfig()
	cfg.Checker.BinaryPath = "/opt/cc"
	cfg.Checker.Timeout = "0"
	cfg.Acquire.Enabled = false
	cfg.Acquire.CacheDir = "/var/cache/cc"
	cfg.Resolve.NegativeTTL = "5m"

	s, err := settingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("settingsFromConfig() error = %v", err)
	}
	if s.BinaryPath != "/opt/cc" || s.Timeout != 0 || s.Download || s.CacheDir != "/var/cache/cc" {
		t.Errorf("settings = %+v", s)
	}
	if s.NegativeTTL.String() != "5m0s" || s.GitHubToken != "tok" {
		t.Errorf("ttl/token = %v/%q", s.NegativeTTL, s.GitHubToken)
	}

	cfg.Checker.Timeout = "soon"
	_, err = settingsFromConfig(cfg)
	var durErr *config.InvalidDurationError
	if !errors.As(err, &durErr) || durErr.Field != "checker.timeout" {
		t.Errorf("settingsFromConfig() error = %v, want InvalidDurationError for checker.timeout", err)
	}
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: mutates package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v0.2.0", "abc1234", "2026-01-02T03:04:05Z"
	if got, want := getVersionString(), "v0.2.0 (commit: abc1234, built: 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}
}

func TestInstallError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause error
		want  issue.Id
	}{
		{"rate limited", &acquire.RateLimitError{Limit: 60, ResetAt: time.Unix(0, 0)}, issue.RateLimitedId},
		{"checksum mismatch", fmt.Errorf("verify: %w", acquire.ErrChecksumMismatch), issue.ChecksumMismatchId},
		{"checksum not listed", acquire.ErrChecksumNotListed, issue.ChecksumMismatchId},
		{"unsupported platform", fmt.Errorf("plan9/386: %w", platform.ErrUnsupportedPlatform), issue.UnsupportedPlatformId},
		{"anything else", errors.New("unexpected status 502"), issue.DownloadFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := installError("/cache", tt.cause)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("installError() = %T, want *issue.ActionableError", err)
			}
			if ae.Resource != "/cache" {
				t.Errorf("Resource = %q, want /cache", ae.Resource)
			}
			if ae.Issue() == nil || ae.Issue().Id() != tt.want {
				t.Errorf("Issue() = %v, want id %d", ae.Issue(), tt.want)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("installError() should wrap %v", tt.cause)
			}
		})
	}
}

func TestRenderError_ShowsLinkedIssue(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	app := NewApp(Dependencies{Config: staticProvider{cfg: isolatedConfig(t)}, Stderr: &stderr})
	app.style = "notty"

	app.renderError(&stderr, installError("/cache", errors.New("unexpected status 502")))
	out := stderr.String()
	if !strings.Contains(out, "failed to install comment checker: /cache: unexpected status 502") {
		t.Errorf("stderr missing error line:\n%s", out)
	}
	if !strings.Contains(out, "Failed to download the comment checker") {
		t.Errorf("stderr missing linked help entry:\n%s", out)
	}

	stderr.Reset()
	app.renderError(&stderr, errors.New("plain failure"))
	if !strings.Contains(stderr.String(), "plain failure") || strings.Contains(stderr.String(), "See also") {
		t.Errorf("plain errors render without a help entry:\n%s", stderr.String())
	}
}

func TestInstall_ReportsActionableFailure(t *testing.T) {
	t.Parallel()
	if _, err := platform.CurrentKey(); err != nil {
		t.Skipf("skipping: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := isolatedConfig(t)
	cfg.Acquire.APIBaseURL = srv.URL

	res := runCLI(t, staticProvider{cfg: cfg}, "", "install")
	var exitErr *ExitError
	if !errors.As(res.err, &exitErr) || exitErr.Code != exitFailure {
		t.Fatalf("install error = %v, want ExitError code %d", res.err, exitFailure)
	}
	var ae *issue.ActionableError
	if !errors.As(res.err, &ae) || ae.Issue() == nil || ae.Issue().Id() != issue.DownloadFailedId {
		t.Fatalf("install error = %v, want a download failure linked to its help entry", res.err)
	}
	if !strings.Contains(res.stderr, "failed to install comment checker") {
		t.Errorf("stderr = %q, want the install failure", res.stderr)
	}
}
