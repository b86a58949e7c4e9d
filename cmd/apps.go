package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/catalog"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/grovetools/appshelf/tui/theme"
	"github.com/spf13/cobra"
)

// NewAppsCmd returns the catalog command group.
func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List and manage catalog applications",
	}

	cmd.AddCommand(newAppsListCmd())
	cmd.AddCommand(newAppsCategoriesCmd())
	cmd.AddCommand(newAppsAddCmd())
	cmd.AddCommand(newAppsDeleteCmd())

	return cmd
}

func newAppsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog applications",
		Long: `List the catalog sorted by name.

Examples:
  # Everything
  appshelf apps list

  # Search names and descriptions within one category
  appshelf apps list --search editor --category tools`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.awaitCatalog(cmd.Context()); err != nil {
				return err
			}

			search, _ := cmd.Flags().GetString("search")
			category, _ := cmd.Flags().GetString("category")
			apps := rt.session.Filtered(search, category)

			if rt.opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), apps)
			}
			if len(apps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Muted.Render("No applications match."))
				return nil
			}

			table := cli.NewTable("ID", "NAME", "CATEGORY", "VERSION", "DESCRIPTION")
			for _, app := range apps {
				name := app.Name
				if app.Featured {
					name += " *"
				}
				table.Row(app.ID, name, app.Category, app.Version, app.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.Render())
			return nil
		},
	}

	cmd.Flags().StringP("search", "s", "", "Case-insensitive match on name or description")
	cmd.Flags().String("category", catalog.AllCategories, "Category to show")

	return cmd
}

func newAppsCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories present in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.awaitCatalog(cmd.Context()); err != nil {
				return err
			}

			categories := rt.session.Categories()
			if rt.opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), categories)
			}
			for _, c := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func newAppsAddCmd() *cobra.Command {
	var draft models.AppDraft

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an application to the catalog (admin)",
		Long: `Add an application to the catalog. Requires admin mode.

The catalog shows the new entry once the store delivers it.

Examples:
  appshelf --path /admin/<user>/<pass> apps add --name Zed --category Tools --version 1.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := rt.timeout(cmd.Context())
			defer cancel()
			return cli.PrintStatus(cmd.OutOrStdout(), rt.opts.JSONOutput, rt.session.AddApp(ctx, &draft))
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "Application name (required)")
	cmd.Flags().StringVar(&draft.Category, "category", "", "Category (required)")
	cmd.Flags().StringVar(&draft.Description, "description", "", "Short description")
	cmd.Flags().StringVar(&draft.Version, "version", "", "Version string")
	cmd.Flags().StringVar(&draft.DownloadURL, "download-url", "", "Download link")
	cmd.Flags().StringVar(&draft.IconURL, "icon-url", "", "Icon image link")
	cmd.Flags().BoolVar(&draft.Featured, "featured", false, "Mark as featured")

	return cmd
}

func newAppsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a catalog application (admin)",
		Long: `Delete a catalog application. Requires admin mode.

The entry is staged first and only removed after confirmation.

Examples:
  appshelf --path /admin/<user>/<pass> apps delete 01HZX3
  appshelf --path /admin/<user>/<pass> apps delete 01HZX3 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.session.View().Admin.LoggedIn {
				return errors.PermissionDenied("delete application")
			}
			if _, err := rt.awaitCatalog(cmd.Context()); err != nil {
				return err
			}
			if err := rt.session.RequestDelete(args[0]); err != nil {
				return err
			}

			staged := rt.session.View().PendingDelete
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				question := fmt.Sprintf("Delete %q (%s)?", staged.Name, staged.ID)
				ok, err := cli.Confirm(bufio.NewReader(os.Stdin), cmd.ErrOrStderr(), question)
				if err != nil {
					rt.session.CancelDelete()
					return err
				}
				if !ok {
					rt.session.CancelDelete()
					fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Muted.Render("Cancelled."))
					return nil
				}
			}

			ctx, cancel := rt.timeout(cmd.Context())
			defer cancel()
			return cli.PrintStatus(cmd.OutOrStdout(), rt.opts.JSONOutput, rt.session.ConfirmDelete(ctx))
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
