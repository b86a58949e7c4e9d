package cmd

import (
	"io"

	"github.com/grovetools/appshelf/logging"
	"github.com/grovetools/appshelf/tui/browse"
	"github.com/grovetools/appshelf/tui/keymap"
	"github.com/spf13/cobra"
)

// NewBrowseCmd returns the interactive browser command.
func NewBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the catalog interactively",
		Long: `Open the live catalog browser. Changes made by any appshelf process
sharing the store daemon appear as they happen.

Start on the admin path to manage the catalog and read messages:
  appshelf --path /admin/<user>/<pass> browse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Structured logs would tear the alternate screen.
			logging.SetGlobalOutput(io.Discard)

			rt, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			return browse.Run(cmd.Context(), rt.session, browse.Options{
				Timeout: rt.opts.Timeout,
				Keys:    keymap.Load(rt.cfg),
			})
		},
	}
}
