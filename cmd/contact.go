package cmd

import (
	"bufio"
	"os"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewContactCmd returns the contact form command group.
func NewContactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message to the catalog owner",
	}

	cmd.AddCommand(newContactSendCmd())

	return cmd
}

func newContactSendCmd() *cobra.Command {
	var form models.ContactForm

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit the contact form",
		Long: `Submit the contact form under this machine's identity.

Fields not given as flags are prompted for when stdin is a terminal.

Examples:
  appshelf contact send --name Ann --email ann@example.com --message "Please add Zed"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isatty.IsTerminal(os.Stdin.Fd()) {
				if err := promptContact(cmd, &form); err != nil {
					return err
				}
			}

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
			return cli.PrintStatus(cmd.OutOrStdout(), rt.opts.JSONOutput, rt.session.SendMessage(ctx, &form))
		},
	}

	cmd.Flags().StringVar(&form.Name, "name", "", "Your name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Your email address")
	cmd.Flags().StringVarP(&form.Message, "message", "m", "", "Message text")

	return cmd
}

// promptContact asks for every empty field of form.
func promptContact(cmd *cobra.Command, form *models.ContactForm) error {
	r := bufio.NewReader(os.Stdin)
	out := cmd.ErrOrStderr()
	fields := []struct {
		prompt string
		value  *string
	}{
		{"Name: ", &form.Name},
		{"Email: ", &form.Email},
		{"Message: ", &form.Message},
	}
	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		line, err := cli.ReadLine(r, out, f.prompt)
		if err != nil {
			return err
		}
		*f.value = line
	}
	return nil
}
