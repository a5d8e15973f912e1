// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/issue"
)

var errCheckerNotFound = errors.New("comment-checker binary not found")

func newWhichCommand(app *App) *cobra.Command {
	var (
		download bool
		all      bool
	)

	whichCmd := &cobra.Command{
		Use:   "which",
		Short: "Show which checker binary would be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.service(nil)
			if err != nil {
				return err
			}
			if download {
				svc.EnsureAvailable(cmd.Context())
			}

			candidates := svc.Candidates()
			if len(candidates) == 0 {
				app.renderIssue(app.stderr, issue.CheckerNotFoundId)
				return &ExitError{Code: exitFailure, Err: errCheckerNotFound}
			}

			if !all {
				candidates = candidates[:1]
			}
			for _, c := range candidates {
				fmt.Fprintf(app.stdout, "%s\t%s\n", c.Path, SubtitleStyle.Render(c.Kind.String()))
			}
			return nil
		},
	}

	whichCmd.Flags().BoolVar(&download, "download", false, "download the checker first if it is missing")
	whichCmd.Flags().BoolVarP(&all, "all", "a", false, "list every location holding a checker")
	return whichCmd
}
