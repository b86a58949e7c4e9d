package cmd

import (
	"fmt"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/schema"
	"github.com/grovetools/appshelf/tui/theme"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the configuration inspection commands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the appshelf configuration",
		Long: `Inspect the appshelf configuration.

The configuration is read from --config, or from the nearest appshelf.yml
(or appshelf.toml) above the working directory, then the user config
directory. Without a file the defaults apply.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigSchemaCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := config.LoadOrDefault(opts.ConfigFile)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), cfg)
			}
			if source := resolveConfigFile(opts.ConfigFile); source != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", source)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "# Source: defaults")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			source := resolveConfigFile(opts.ConfigFile)
			if source == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), theme.DefaultTheme.Muted.Render("No config file found; using defaults."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), source)
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for appshelf.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), string(schema.Schema()))
			return nil
		},
	}
}
