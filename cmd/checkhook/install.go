// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/acquire"
	"github.com/checkhook/checkhook/internal/checker"
	"github.com/checkhook/checkhook/internal/issue"
	"github.com/checkhook/checkhook/pkg/platform"
)

func newInstallCommand(app *App) *cobra.Command {
	var version string

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Download the checker into the cache directory",
		Long: `Download the checker into the cache directory.

The release archive is verified against the release's checksums.txt before
the binary is installed. An already cached binary is reused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settingsFromConfig(app.cfg)
			if err != nil {
				return err
			}
			s.Logger = app.logger()
			if version != "" {
				s.Version = version
			}

			path, err := checker.NewAcquirer(s).Ensure(cmd.Context())
			if err != nil {
				err = installError(s.CacheDir, err)
				app.renderError(app.stderr, err)
				return &ExitError{Code: exitFailure, Err: err}
			}

			fmt.Fprintf(app.stdout, "%s Checker available at %s\n", SuccessStyle.Render("✓"), PathStyle.Render(path))
			return nil
		},
	}

	installCmd.Flags().StringVar(&version, "version", "", "release tag to install (default: acquire.version or latest)")
	return installCmd
}

// installError attaches the cache directory and the matching help entry to an
// acquisition failure.
func installError(cacheDir string, err error) error {
	return issue.NewErrorContext().
		WithOperation("install comment checker").
		WithResource(cacheDir).
		WithIssue(installIssue(err)).
		Wrap(err).
		BuildError()
}

// installIssue maps an acquisition failure to its help entry.
func installIssue(err error) issue.Id {
	var rateErr *acquire.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		return issue.RateLimitedId
	case errors.Is(err, acquire.ErrChecksumMismatch), errors.Is(err, acquire.ErrChecksumNotListed):
		return issue.ChecksumMismatchId
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return issue.UnsupportedPlatformId
	default:
		return issue.DownloadFailedId
	}
}
