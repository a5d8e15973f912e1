// SPDX-License-Identifier: MPL-2.0

package bashguard

// Name identifies the guard in block messages.
const Name = "interactive-bash-blocker"

// interactivePatterns are tested in order; the first match blocks.
//
//nolint:gochecknoglobals // immutable table
var interactivePatterns = []string{
	// git subcommands opening an editor or a hunk selector
	`\bgit\s+(?:rebase|add|stash|reset|checkout|commit|merge|revert|cherry-pick)\s+.*-i\b`,
	`\bgit\s+(?:rebase|add|stash|reset|checkout|commit|merge|revert|cherry-pick)\s+.*--interactive\b`,
	`\bgit\s+.*-p\b`,
	`\bgit\s+add\s+.*--patch\b`,
	`\bgit\s+stash\s+.*--patch\b`,

	// editors
	`\b(?:vim?|nvim|nano|emacs|pico|joe|micro|helix|hx)\b`,

	// bare REPLs
	`^\s*(?:python|python3|ipython|node|bun|deno|irb|pry|ghci|erl|iex|lua|R)\s*$`,

	// pagers, monitors and remote shells
	`\btop\b(?!\s+\|)`,
	`\bhtop\b`,
	`\bbtop\b`,
	`\bless\b(?!\s+\|)`,
	`\bmore\b(?!\s+\|)`,
	`\bman\b`,
	`\bwatch\b`,
	`\bssh\b(?!.*-[oTNf])`,
	`\btelnet\b`,
	`\bftp\b`,
	`\bsftp\b`,
	`\bmysql\b(?!.*-e)`,
	`\bpsql\b(?!.*-c)`,
	`\bmongo\b(?!.*--eval)`,
	`\bredis-cli\b(?!.*[^\s])`,

	// TUIs
	`\bncurses\b`,
	`\bdialog\b`,
	`\bwhiptail\b`,
	`\bmc\b`,
	`\branger\b`,
	`\bnnn\b`,
	`\blf\b`,
	`\bvifm\b`,
	`\bgitui\b`,
	`\blazygit\b`,
	`\blazydocker\b`,
	`\bk9s\b`,

	// package managers prompting for confirmation
	`\bapt\s+(?:install|remove|upgrade|dist-upgrade)\b(?!.*-y)`,
	`\bapt-get\s+(?:install|remove|upgrade|dist-upgrade)\b(?!.*-y)`,
	`\byum\s+(?:install|remove|update)\b(?!.*-y)`,
	`\bdnf\s+(?:install|remove|update)\b(?!.*-y)`,
	`\bpacman\s+-S\b(?!.*--noconfirm)`,
	`\bbrew\s+(?:install|uninstall|upgrade)\b(?!.*--force)`,

	// shell builtins reading from the terminal
	`\bread\b(?!\s+.*<)`,
	`\bselect\b.*\bin\b`,
}

// stdinCommands prompt for secrets or answers on stdin.
//
//nolint:gochecknoglobals // immutable table
var stdinCommands = []string{
	"passwd",
	"su",
	"sudo -S",
	"gpg --gen-key",
	"ssh-keygen",
}

const tmuxSuggestion = `
[` + Name + `]
This command requires interactive input which is not supported in this environment.

**Recommendation**: Use tmux for interactive commands.

Example with interactive-terminal skill:
` + "```" + `
# Start a tmux session
tmux new-session -d -s interactive

# Send your command
tmux send-keys -t interactive 'your-command-here' Enter

# Capture output
tmux capture-pane -t interactive -p
` + "```" + `

Or use the 'interactive-terminal' skill for easier workflow.
`

// BuiltinPatterns returns a copy of the interactive pattern table.
func BuiltinPatterns() []string {
	return append([]string(nil), interactivePatterns...)
}

// StdinCommands returns a copy of the stdin-prompting command list.
func StdinCommands() []string {
	return append([]string(nil), stdinCommands...)
}
