// SPDX-License-Identifier: MPL-2.0

package bashguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"

	"github.com/checkhook/checkhook/internal/diag"
)

// matchTimeout bounds a single pattern evaluation; backtracking patterns
// from user config must not stall the hook.
const matchTimeout = 100 * time.Millisecond

// ErrInvalidPattern is the sentinel wrapped by PatternError.
var ErrInvalidPattern = errors.New("invalid guard pattern")

type (
	// PatternError reports a pattern that failed to compile.
	PatternError struct {
		Pattern string
		Err     error
	}

	// BlockResult is the outcome of checking one command.
	BlockResult struct {
		Blocked        bool
		Reason         string
		Command        string
		MatchedPattern string
	}

	// Guard checks shell commands against the interactive tables.
	// A Guard is immutable after New and safe for concurrent use.
	Guard struct {
		disabled bool
		blockers []rule
		allow    []rule
		stdin    []stdinRule
		logger   *log.Logger
	}

	// Option configures a Guard.
	Option func(*config)

	// HookInput is the subset of a pre-tool-use hook event the guard reads.
	HookInput struct {
		SessionID string `json:"session_id"`
		ToolName  string `json:"tool_name"`
		ToolInput struct {
			Command string `json:"command"`
		} `json:"tool_input"`
	}

	config struct {
		disabled   bool
		additional []string
		allow      []string
		logger     *log.Logger
	}

	rule struct {
		source string
		re     *regexp2.Regexp
	}

	// stdinRule matches a command name as a whole word sequence.
	stdinRule struct {
		command string
		re      *regexp2.Regexp
	}
)

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid guard pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *PatternError) Unwrap() error { return ErrInvalidPattern }

// WithDisabled turns the guard into a no-op.
func WithDisabled(disabled bool) Option {
	return func(c *config) {
		c.disabled = disabled
	}
}

// WithAdditionalPatterns appends blocking patterns after the built-in table.
func WithAdditionalPatterns(patterns ...string) Option {
	return func(c *config) {
		c.additional = append(c.additional, patterns...)
	}
}

// WithAllowPatterns adds patterns that exempt a command from blocking.
// An allow match always wins.
func WithAllowPatterns(patterns ...string) Option {
	return func(c *config) {
		c.allow = append(c.allow, patterns...)
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// New compiles the built-in tables plus any configured patterns.
func New(opts ...Option) (*Guard, error) {
	cfg := config{logger: diag.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Guard{disabled: cfg.disabled, logger: cfg.logger}

	var err error
	if g.blockers, err = compileRules(append(BuiltinPatterns(), cfg.additional...)); err != nil {
		return nil, err
	}
	if g.allow, err = compileRules(cfg.allow); err != nil {
		return nil, err
	}
	for _, cmd := range stdinCommands {
		// Entries are plain words, so joining them with \s+ needs no escaping.
		pattern := `(?:^|[\s;&|(])` + strings.Join(strings.Fields(cmd), `\s+`) + `(?=$|[\s;&|)])`
		g.stdin = append(g.stdin, stdinRule{command: cmd, re: regexp2.MustCompile(pattern, regexp2.ECMAScript)})
	}
	return g, nil
}

func compileRules(patterns []string) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		// ECMAScript semantics keep \s, \b and lookaheads behaving as the
		// table was written.
		re, err := regexp2.Compile(p, regexp2.ECMAScript)
		if err != nil {
			return nil, &PatternError{Pattern: p, Err: err}
		}
		re.MatchTimeout = matchTimeout
		rules = append(rules, rule{source: p, re: re})
	}
	return rules, nil
}

// Check reports whether command would block on interactive input.
func (g *Guard) Check(command string) BlockResult {
	cmd := strings.TrimSpace(command)
	if g.disabled || cmd == "" {
		return BlockResult{}
	}

	if src, ok := firstMatch(g.allow, cmd, g.logger); ok {
		g.logger.Debug("command allowed", "command", cmd, "pattern", src)
		return BlockResult{}
	}

	if src, ok := firstMatch(g.blockers, cmd, g.logger); ok {
		return BlockResult{
			Blocked:        true,
			Reason:         "Command contains interactive pattern",
			Command:        cmd,
			MatchedPattern: src,
		}
	}

	for _, s := range g.stdin {
		if ok, _ := s.re.MatchString(cmd); ok {
			return BlockResult{
				Blocked:        true,
				Reason:         "Command requires stdin interaction: " + s.command,
				Command:        cmd,
				MatchedPattern: s.command,
			}
		}
	}
	return BlockResult{}
}

// CheckTool applies Check only to the bash tool; other tools pass.
func (g *Guard) CheckTool(toolName, command string) BlockResult {
	if !strings.EqualFold(toolName, "bash") {
		return BlockResult{}
	}
	res := g.Check(command)
	if res.Blocked {
		g.logger.Info("blocking interactive command", "command", res.Command, "pattern", res.MatchedPattern)
	}
	return res
}

// CheckHook decodes a hook event from r and checks it.
func (g *Guard) CheckHook(r io.Reader) (BlockResult, error) {
	var in HookInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return BlockResult{}, fmt.Errorf("decoding hook payload: %w", err)
	}
	return g.CheckTool(in.ToolName, in.ToolInput.Command), nil
}

// Message renders the text returned to the agent for a blocked command.
func (r BlockResult) Message() string {
	if !r.Blocked {
		return ""
	}
	return fmt.Sprintf("[%s] %s\nCommand: %s\nPattern: %s\n%s", Name, r.Reason, r.Command, r.MatchedPattern, tmuxSuggestion)
}

// firstMatch returns the source of the first rule matching cmd. A rule that
// times out is treated as not matching.
func firstMatch(rules []rule, cmd string, logger *log.Logger) (string, bool) {
	for _, r := range rules {
		ok, err := r.re.MatchString(cmd)
		if err != nil {
			logger.Debug("pattern evaluation failed", "pattern", r.source, "err", err)
			continue
		}
		if ok {
			return r.source, true
		}
	}
	return "", false
}
