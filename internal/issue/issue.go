// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	CheckerNotFoundId Id = iota + 1
	DownloadFailedId
	RateLimitedId
	ChecksumMismatchId
	UnsupportedPlatformId
	ConfigLoadFailedId
	InvalidHookInputId
	InteractiveCommandBlockedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // never empty
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the full message including the "See also" links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue for a terminal. stylePath is a glamour standard
// style name ("auto", "dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

const (
	repoDocs        HttpLink = "https://github.com/checkhook/checkhook#readme"
	checkerRepo     HttpLink = "https://github.com/code-yeongyu/go-claude-code-comment-checker"
	checkerReleases HttpLink = "https://github.com/code-yeongyu/go-claude-code-comment-checker/releases"
)

//nolint:gochecknoglobals // immutable catalog
var (
	render = glamour.Render

	checkerNotFoundIssue = &Issue{
		id: CheckerNotFoundId,
		mdMsg: `
# No comment checker found

checkhook could not find the comment-checker binary, so edits are not being checked.

## Search locations (in order of precedence):
1. ` + "`checker.binary_path`" + ` from your config file
2. The ` + "`@code-yeongyu/comment-checker`" + ` package in node_modules
3. The legacy per-platform package (e.g. ` + "`@code-yeongyu/comment-checker-linux-x64`" + `)
4. Homebrew locations on macOS
5. The checkhook download cache

## Things you can try:
- Download it now:
~~~
$ checkhook install
~~~
- Or install the package next to your project:
~~~
$ npm install @code-yeongyu/comment-checker
~~~`,
		docLinks: []HttpLink{repoDocs},
		extLinks: []HttpLink{checkerRepo},
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Failed to download the comment checker

The release could not be fetched or installed into the cache directory.

## Things you can try:
- Check your network connection and proxy settings
- Make sure the cache directory (` + "`acquire.cache_dir`" + `) is writable
- Pin a known release with ` + "`acquire.version`" + ``,
		docLinks: []HttpLink{repoDocs},
		extLinks: []HttpLink{checkerReleases},
	}

	rateLimitedIssue = &Issue{
		id: RateLimitedId,
		mdMsg: `
# GitHub API rate limit exceeded

Unauthenticated requests to the GitHub API are limited per hour.

## Things you can try:
- Export a token and retry:
~~~
$ export GITHUB_TOKEN=<token>
$ checkhook install
~~~
- Wait for the limit to reset`,
		docLinks: []HttpLink{repoDocs},
		extLinks: []HttpLink{"https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum verification failed

The downloaded archive does not match the release's checksums.txt and was discarded.

## Things you can try:
- Retry the download; the transfer may have been corrupted
- If it keeps failing, report it to the checker maintainers`,
		docLinks: []HttpLink{repoDocs},
		extLinks: []HttpLink{checkerReleases},
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Platform not supported

No comment-checker build is published for this operating system and architecture.
Supported: darwin-arm64, darwin-x64, linux-arm64, linux-x64, win32-x64.

## Things you can try:
- Build the checker from source and set ` + "`checker.binary_path`",
		docLinks: []HttpLink{repoDocs},
		extLinks: []HttpLink{checkerRepo},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

Your config file could not be parsed or does not match the schema.

## Things you can try:
- Print the defaults as a starting point:
~~~
$ checkhook config show --defaults
~~~
- Check ` + "`CHECKHOOK_*`" + ` environment variables for invalid values`,
		docLinks: []HttpLink{repoDocs},
	}

	invalidHookInputIssue = &Issue{
		id: InvalidHookInputId,
		mdMsg: `
# Invalid hook input

checkhook expects a single hook event as JSON on stdin.

## Example:
~~~json
{"tool_name": "Write", "tool_input": {"file_path": "main.go", "content": "package main"}}
~~~`,
		docLinks: []HttpLink{repoDocs},
	}

	interactiveCommandBlockedIssue = &Issue{
		id: InteractiveCommandBlockedId,
		mdMsg: `
# Interactive command blocked

The command waits for keyboard input and would hang a non-interactive agent.

## Things you can try:
- Use a non-interactive flag (` + "`-y`, `--no-edit`, `--no-pager`" + `)
- Run it inside tmux and drive it with ` + "`send-keys`" + `
- Allow it explicitly with ` + "`guard.allow_patterns`",
		docLinks: []HttpLink{repoDocs},
	}

	issues = map[Id]*Issue{
		checkerNotFoundIssue.Id():           checkerNotFoundIssue,
		downloadFailedIssue.Id():            downloadFailedIssue,
		rateLimitedIssue.Id():               rateLimitedIssue,
		checksumMismatchIssue.Id():          checksumMismatchIssue,
		unsupportedPlatformIssue.Id():       unsupportedPlatformIssue,
		configLoadFailedIssue.Id():          configLoadFailedIssue,
		invalidHookInputIssue.Id():          invalidHookInputIssue,
		interactiveCommandBlockedIssue.Id(): interactiveCommandBlockedIssue,
	}
)

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
