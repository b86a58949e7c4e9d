package cmd

import (
	"fmt"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/grovetools/appshelf/tui/theme"
	"github.com/spf13/cobra"
)

// NewMessagesCmd returns the admin message inbox command group.
func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Read and delete contact messages (admin)",
		Long: `Read and delete contact messages. Requires admin mode.

Admin mode reads the messages stored under the current identity.`,
	}

	cmd.AddCommand(newMessagesListCmd())
	cmd.AddCommand(newMessagesDeleteCmd())

	return cmd
}

func newMessagesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.session.View().Admin.LoggedIn {
				return errors.PermissionDenied("read messages")
			}
			v, err := rt.awaitMessages(cmd.Context())
			if err != nil {
				return err
			}

			if rt.opts.JSONOutput {
				if v.Messages == nil {
					v.Messages = []models.ContactMessage{}
				}
				return cli.PrintJSON(cmd.OutOrStdout(), v.Messages)
			}
			if len(v.Messages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.DefaultTheme.Muted.Render("No messages."))
				return nil
			}

			table := cli.NewTable("ID", "RECEIVED", "FROM", "MESSAGE")
			for _, m := range v.Messages {
				received := "-"
				if !m.Timestamp.IsZero() {
					received = m.Timestamp.Local().Format("2006-01-02 15:04")
				}
				table.Row(m.ID, received, fmt.Sprintf("%s <%s>", m.Name, m.Email), m.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.Render())
			return nil
		},
	}
}

func newMessagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.awaitIdentity(cmd.Context()); err != nil {
				return err
			}

			ctx, cancel := rt.timeout(cmd.Context())
			defer cancel()
			return cli.PrintStatus(cmd.OutOrStdout(), rt.opts.JSONOutput, rt.session.DeleteMessage(ctx, args[0]))
		},
	}
}
