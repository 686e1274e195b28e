package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/philoview/pkg/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the pv config file",
	}
	cmd.AddCommand(newConfigInitCmd(o), newConfigPathCmd(o))
	return cmd
}

func newConfigInitCmd(o *rootOptions) *cobra.Command {
	var force, project bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Writes the default settings, plus any --base-url, --lang, --role or
--card given, to the config file pv would read (see 'pv config path').
With --project the file goes to .pv/config.yaml in the current directory
and .pv/ is added to .gitignore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, exists := configTarget(o)
			var dir string
			if project {
				if o.configPath != "" {
					return fmt.Errorf("--project and --config cannot be combined")
				}
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = cwd
				path = config.ProjectConfigPath(dir)
				_, err = os.Stat(path)
				exists = err == nil
			}
			if exists && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := defaultsWithFlags(o)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			if project {
				if err := config.EnsureIgnored(dir); err != nil {
					return fmt.Errorf("updating .gitignore: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&project, "project", false, "write .pv/config.yaml in the current directory")
	return cmd
}

func newConfigPathCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file pv reads",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path, exists := configTarget(o)
			if exists {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (not created yet)\n", path)
		},
	}
}

// configTarget is the file pv would read, and whether it exists yet.
func configTarget(o *rootOptions) (string, bool) {
	return config.Discover(o.configPath)
}

func defaultsWithFlags(o *rootOptions) *config.Config {
	cfg := config.DefaultConfig()
	o.override(cfg)
	return cfg
}
