// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/checker"
	"github.com/checkhook/checkhook/internal/config"
	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/internal/issue"
)

//nolint:gochecknoglobals // set via -ldflags
var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires CLI services and shared dependencies. All command handlers
	// receive an App and read configuration and streams through it.
	App struct {
		Config     config.Provider
		NewService func(checker.Settings) *checker.Service
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer

		cfgFile   string
		verbose   bool
		cfg       *config.Config
		cfgSource string
		style     string
		exitCode  int
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		NewService func(checker.Settings) *checker.Service
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		NewService: deps.NewService,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.NewService == nil {
		app.NewService = checker.NewService
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// newRootCommand builds the command tree bound to app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "checkhook",
		Short: "Comment checker and interactive command guard for agent hooks",
		Long: TitleStyle.Render("checkhook") + SubtitleStyle.Render(" - comment checker hooks for coding agents") + `

checkhook finds (or downloads) the comment-checker binary and runs it
against edits made by a coding agent. It also guards shell tool calls
against commands that would wait for keyboard input.

` + SubtitleStyle.Render("Hook usage:") + `
  checkhook check           PostToolUse hook for Write/Edit/MultiEdit
  checkhook guard           PreToolUse hook for Bash

` + SubtitleStyle.Render("Management:") + `
  checkhook which           Show where the checker is found
  checkhook install         Download the checker into the cache
  checkhook config show     Show the effective configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.loadConfig(cmd.Context())
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/checkhook/config.cue)")

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(
		newCheckCommand(app),
		newGuardCommand(app),
		newWhichCommand(app),
		newInstallCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
	os.Exit(app.exitCode)
}

// loadConfig reads the configuration once per process. A broken config
// never stops the hooks: the error is surfaced and defaults are used.
func (app *App) loadConfig(ctx context.Context) {
	if app.cfg != nil {
		return
	}

	var (
		cfg *config.Config
		err error
	)
	opts := config.LoadOptions{ConfigFilePath: app.cfgFile}
	if sp, ok := app.Config.(config.SourceProvider); ok {
		cfg, app.cfgSource, err = sp.LoadWithSource(ctx, opts)
	} else {
		cfg, err = app.Config.Load(ctx, opts)
	}
	if err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, app.verbose))
		cfg = config.DefaultConfig()
	}
	app.cfg = cfg

	if !app.verbose {
		app.verbose = cfg.UI.Verbose
	}
	app.style = applyColorScheme(cfg.UI.ColorScheme)
}

// logger returns the diagnostics logger for this run. Verbose mode mirrors
// diagnostics to stderr instead of the debug file.
func (app *App) logger() *log.Logger {
	if app.verbose {
		return diag.NewWithWriter(app.stderr, diag.DefaultPrefix)
	}
	return diag.New(diag.Options{
		Enabled: diag.EnabledFromEnv() || app.cfg.Debug.Enabled,
		Path:    app.cfg.Debug.LogFile,
	})
}

// service builds the checker service for the loaded configuration.
func (app *App) service(mutate func(*checker.Settings)) (*checker.Service, error) {
	s, err := settingsFromConfig(app.cfg)
	if err != nil {
		return nil, err
	}
	s.Logger = app.logger()
	if mutate != nil {
		mutate(&s)
	}
	return app.NewService(s), nil
}

// renderIssue writes a catalogued issue to w, falling back to raw markdown
// when rendering fails.
func (app *App) renderIssue(w io.Writer, id issue.Id) {
	app.renderEntry(w, issue.Get(id))
}

// renderError writes err and, for an ActionableError, the help entry it links.
func (app *App) renderError(w io.Writer, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, app.verbose))
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		app.renderEntry(w, ae.Issue())
	}
}

func (app *App) renderEntry(w io.Writer, entry *issue.Issue) {
	if entry == nil {
		return
	}
	rendered, err := entry.Render(app.style)
	if err != nil {
		rendered = entry.Markdown()
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own Format; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
