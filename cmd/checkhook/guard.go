// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/bashguard"
	"github.com/checkhook/checkhook/internal/issue"
)

func newGuardCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "guard",
		Short: "Block interactive shell commands in a hook event read from stdin",
		Long: `Block interactive shell commands in a hook event read from stdin.

Exits 2 with an explanation on stderr when the Bash command would wait for
keyboard input. Other tools and malformed input exit 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuard(app)
		},
	}
}

func runGuard(app *App) error {
	g, err := bashguard.New(
		bashguard.WithDisabled(app.cfg.Guard.Disabled),
		bashguard.WithAdditionalPatterns(app.cfg.Guard.AdditionalPatterns...),
		bashguard.WithAllowPatterns(app.cfg.Guard.AllowPatterns...),
		bashguard.WithLogger(app.logger()),
	)
	if err != nil {
		app.failOpen("guard patterns", err, issue.ConfigLoadFailedId)
		return nil
	}

	res, err := g.CheckHook(app.stdin)
	if err != nil {
		app.failOpen("hook input", err, issue.InvalidHookInputId)
		return nil
	}
	if res.Blocked {
		fmt.Fprint(app.stderr, res.Message())
		app.exitCode = exitBlocked
	}
	return nil
}
