package cmd

import (
	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories and files appshelf uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	StateDir  string `json:"state_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	DaemonLog string `json:"daemon_log"`
	Database  string `json:"database"`
	StateFile string `json:"state_file"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by appshelf",
		Long: `Print the XDG-compliant paths used by appshelf as JSON.

- config_dir: appshelf.yml
- data_dir: the SQLite catalog database
- state_dir: daemon pidfile, log and the persisted identity
- socket: the daemon's Unix socket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.PrintJSON(cmd.OutOrStdout(), PathsOutput{
				ConfigDir: paths.ConfigDir(),
				DataDir:   paths.DataDir(),
				StateDir:  paths.StateDir(),
				Socket:    paths.SocketPath(),
				PidFile:   paths.PidFilePath(),
				DaemonLog: paths.DaemonLogPath(),
				Database:  paths.DatabasePath(),
				StateFile: paths.StateFilePath(),
			})
		},
	}
}
