package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultTimeout bounds a single command's store round trips.
const DefaultTimeout = 10 * time.Second

// CommandOptions holds the options shared by every appshelf command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
	// Path is the navigation path the session starts on.
	Path    string
	Timeout time.Duration
}

// NewStandardCommand creates a command with the standard appshelf flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to appshelf.yml config file")
	cmd.PersistentFlags().StringP("path", "p", "/", "Navigation path the session starts on (e.g. /admin/<user>/<pass>)")
	cmd.PersistentFlags().Duration("timeout", DefaultTimeout, "How long to wait for the store")

	SetStyledHelp(cmd)

	return cmd
}

// GetLogger returns the CLI logger, at debug level when --verbose is set.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	logger := logging.NewLogger("appshelf")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logging.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	path, _ := cmd.Flags().GetString("path")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
		Path:       path,
		Timeout:    timeout,
	}
}

// LoadConfig loads the file named by --config, or the nearest appshelf
// config, or the defaults when there is none.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadOrDefault(GetOptions(cmd).ConfigFile)
}

// InitConfig resolves the configuration file path. An empty result means no
// file was found.
func InitConfig(configFile string) (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	found, err := config.FindConfigFile(cwd)
	if err != nil {
		return "", nil
	}
	return found, nil
}

// Execute runs root and renders any error through the ErrorHandler.
// It returns the process exit code.
func Execute(root *cobra.Command) int {
	ApplyStyledHelpRecursive(root)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	NewErrorHandler(verbose).Handle(cmd, err)
	return 1
}
