// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/checker"
	"github.com/checkhook/checkhook/internal/issue"
)

func newCheckCommand(app *App) *cobra.Command {
	var (
		binary     string
		noDownload bool
	)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run the comment checker on a hook event read from stdin",
		Long: `Run the comment checker on a hook event read from stdin.

Exits 2 with the checker's message on stderr when problematic comments are
found. Every other outcome, including a missing checker, exits 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, app, binary, noDownload)
		},
	}

	checkCmd.Flags().StringVar(&binary, "binary", "", "run this checker binary instead of searching")
	checkCmd.Flags().BoolVar(&noDownload, "no-download", false, "never download the checker")
	return checkCmd
}

func runCheck(cmd *cobra.Command, app *App, binary string, noDownload bool) error {
	ctx := cmd.Context()

	payload, err := checker.ParseHookInput(app.stdin)
	if err != nil {
		app.failOpen("hook input", err, issue.InvalidHookInputId)
		return nil
	}

	svc, err := app.service(func(s *checker.Settings) {
		if noDownload {
			s.Download = false
		}
	})
	if err != nil {
		app.failOpen("settings", err, issue.ConfigLoadFailedId)
		return nil
	}

	path := binary
	if path == "" {
		p, ok := svc.ResolveAsync(ctx)
		if !ok {
			if app.verbose {
				app.renderIssue(app.stderr, issue.CheckerNotFoundId)
			}
			return nil
		}
		path = p
	}

	res := svc.RunWithPath(ctx, path, payload)
	if res.Flagged {
		fmt.Fprint(app.stderr, res.Message)
		app.exitCode = exitBlocked
	}
	return nil
}

// failOpen reports an internal hook failure without blocking the agent.
// Details are only shown in verbose mode.
func (app *App) failOpen(what string, err error, id issue.Id) {
	if !app.verbose {
		return
	}
	fmt.Fprintf(app.stderr, "%s %s: %s\n", WarningStyle.Render("Skipping check:"), what, formatErrorForDisplay(err, true))
	app.renderIssue(app.stderr, id)
}
