package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/catalog"
	"github.com/grovetools/appshelf/tui/theme"
	"github.com/spf13/cobra"
)

// NewAdminCmd returns the admin mode command group.
func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Enter or leave admin mode",
		Long: `Admin mode is unlocked by starting on the navigation path
/admin/<username>/<password>. Pass it with --path to any command.`,
	}

	cmd.AddCommand(newAdminLoginCmd())
	cmd.AddCommand(newAdminLogoutCmd())

	return cmd
}

type adminLoginOutput struct {
	LoggedIn bool   `json:"loggedIn"`
	Path     string `json:"path"`
}

func newAdminLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check admin credentials and print the admin path",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := config.LoadOrDefault(opts.ConfigFile)
			if err != nil {
				return err
			}

			r := bufio.NewReader(os.Stdin)
			out := cmd.ErrOrStderr()
			user, err := cli.ReadLine(r, out, "Username: ")
			if err != nil {
				return err
			}
			pass, err := cli.ReadPassword(os.Stdin, r, out, "Password: ")
			if err != nil {
				return err
			}

			path := catalog.AdminPath(catalog.Credentials{Username: user, Password: pass})
			session, _ := catalog.DeriveAdminMode(path, catalog.Credentials{
				Username: cfg.Admin.Username,
				Password: cfg.Admin.Password,
			})

			if opts.JSONOutput {
				if err := cli.PrintJSON(cmd.OutOrStdout(), adminLoginOutput{LoggedIn: session.LoggedIn, Path: path}); err != nil {
					return err
				}
			}
			if !session.LoggedIn {
				return errors.PermissionDenied("admin login").WithDetail("reason", "credentials rejected")
			}
			if !opts.JSONOutput {
				fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Success.Render("Credentials accepted."))
				fmt.Fprintf(cmd.OutOrStdout(), "Use: appshelf --path %s <command>\n", path)
			}
			return nil
		},
	}
}

func newAdminLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Leave admin mode for the given --path",
		Long: `Leave admin mode. Admin mode lives only as long as a session, so this
starts one on --path, logs out of it and reports the path it ends on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			was := rt.session.Logout()
			v := rt.session.View()
			if rt.opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), adminLoginOutput{LoggedIn: v.Admin.LoggedIn, Path: v.Path})
			}
			if was {
				fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Success.Render("Logged out of admin mode."))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Muted.Render("Not in admin mode."))
			}
			return nil
		},
	}
}
