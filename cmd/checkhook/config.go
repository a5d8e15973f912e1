// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/checkhook/checkhook/internal/config"
)

// newConfigCommand creates the `checkhook config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage checkhook configuration",
		Long: `Manage checkhook configuration.

Configuration is stored in:
  - Linux: ~/.config/checkhook/config.cue
  - macOS: ~/Library/Application Support/checkhook/config.cue
  - Windows: %APPDATA%\checkhook\config.cue

Every key can also be set through CHECKHOOK_<SECTION>_<KEY> environment
variables, e.g. CHECKHOOK_CHECKER_TIMEOUT=10s.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var defaults bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source := app.cfg, app.cfgSource
			if defaults {
				cfg, source = config.DefaultConfig(), ""
			}
			if source == "" {
				source = "built-in defaults and environment"
			}
			fmt.Fprintf(app.stdout, "// source: %s\n", source)
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}
	showCmd.Flags().BoolVar(&defaults, "defaults", false, "show built-in defaults instead of the loaded configuration")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), PathStyle.Render(path))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfgFile != "" {
				fmt.Fprintln(app.stdout, app.cfgFile)
				return nil
			}
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}
