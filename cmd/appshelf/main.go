package main

import (
	"os"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/cmd"
	"github.com/grovetools/appshelf/version"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"appshelf",
		"Browse the application catalog, send messages, and manage it in admin mode",
	)
	rootCmd.Version = version.GetInfo().Short()

	rootCmd.AddCommand(cmd.NewAppsCmd())
	rootCmd.AddCommand(cmd.NewBrowseCmd())
	rootCmd.AddCommand(cmd.NewContactCmd())
	rootCmd.AddCommand(cmd.NewMessagesCmd())
	rootCmd.AddCommand(cmd.NewAdminCmd())
	rootCmd.AddCommand(cmd.NewDaemonCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("appshelf"))

	os.Exit(cli.Execute(rootCmd))
}
