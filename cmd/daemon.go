package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/internal/daemon/pidfile"
	"github.com/grovetools/appshelf/internal/daemon/server"
	"github.com/grovetools/appshelf/internal/daemon/store"
	"github.com/grovetools/appshelf/logging"
	"github.com/grovetools/appshelf/pkg/daemon"
	"github.com/grovetools/appshelf/pkg/paths"
	"github.com/grovetools/appshelf/pkg/process"
	"github.com/grovetools/appshelf/version"
	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewDaemonCmd returns the store daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the shared document store daemon",
		Long: `The daemon owns the document store and serves it on a Unix socket.

While it runs every appshelf process on the machine shares one live store.
Without it each process opens the configured store directly.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	cmd.AddCommand(newDaemonLogsCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			logger := logging.NewLogger("appshelfd")

			cfg, err := config.LoadOrDefault(opts.ConfigFile)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create state directories: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(paths.DaemonLogPath()), 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			logFile, err := os.OpenFile(paths.DaemonLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open daemon log: %w", err)
			}
			defer logFile.Close()
			logger.Logger.SetOutput(io.MultiWriter(logger.Logger.Out, logFile))

			pidPath := paths.PidFilePath()
			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			backend, err := store.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer backend.Close()

			configFile := resolveConfigFile(opts.ConfigFile)
			srv := server.New(logger, backend)
			srv.SetRunningConfig(&server.RunningConfig{
				Version:    version.GetInfo().Short(),
				Tenant:     cfg.Tenant,
				Driver:     cfg.Store.Driver,
				StorePath:  cfg.Store.Path,
				Socket:     cfg.Daemon.Socket,
				ConfigFile: configFile,
				LogLevel:   logger.Logger.GetLevel().String(),
				StartedAt:  time.Now(),
				PID:        os.Getpid(),
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if cfg.WatchConfig() && configFile != "" {
				watcher, err := daemon.NewConfigWatcher(configFile, 0, func(file string) {
					reloadLogging(logger, srv, file)
				})
				if err != nil {
					logger.WithError(err).Warn("Config watching disabled")
				} else {
					defer watcher.Close()
					go watcher.Start(ctx)
				}
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			go func() {
				select {
				case <-stop:
					logger.Info("Received stop signal")
				case <-ctx.Done():
				}
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			logger.WithFields(logrus.Fields{
				"pid":    os.Getpid(),
				"socket": cfg.Daemon.Socket,
				"driver": cfg.Store.Driver,
			}).Info("Starting daemon")
			if err := srv.ListenAndServe(cfg.Daemon.Socket); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("Daemon stopped")
			return nil
		},
	}
}

// resolveConfigFile returns the absolute config file the daemon runs with,
// or "" when it runs on defaults.
func resolveConfigFile(flag string) string {
	if flag != "" {
		if abs, err := filepath.Abs(flag); err == nil {
			return abs
		}
		return flag
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	found, err := config.FindConfigFile(cwd)
	if err != nil {
		return ""
	}
	return found
}

// reloadLogging re-applies the logging section after the config file changed.
// Store settings are read once at startup.
func reloadLogging(logger *logrus.Entry, srv *server.Server, file string) {
	cfg, err := config.Load(file)
	if err != nil {
		logger.WithError(err).Warn("Ignoring invalid config change")
		return
	}
	if err := logging.Reload(cfg); err != nil {
		logger.WithError(err).Warn("Failed to reload logging config")
		return
	}
	if running := srv.RunningConfig(); running != nil {
		updated := *running
		updated.LogLevel = logger.Logger.GetLevel().String()
		srv.SetRunningConfig(&updated)
	}
	logger.WithField("file", file).Info("Reloaded logging config")
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			if err := process.Terminate(pid); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			if err := process.WaitExit(ctx, pid, 50*time.Millisecond); err != nil {
				return fmt.Errorf("daemon (PID %d) did not exit: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped daemon (PID %d)\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Long: `Check daemon status. Exits non-zero when the daemon is stopped.

With --json the daemon's running configuration is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			cfg, err := config.LoadOrDefault(opts.ConfigFile)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running || !daemon.Reachable(cfg.Daemon.Socket) {
				if !opts.JSONOutput {
					fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				}
				return errors.DaemonNotFound(cfg.Daemon.Socket)
			}

			client := daemon.NewRemoteStore(cfg.Daemon.Socket)
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			runningCfg, err := client.GetConfig(ctx)
			if err != nil {
				return err
			}

			if opts.JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), runningCfg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Running (PID: %d)\nVersion: %s\nSocket: %s\nStore: %s %s\nUptime: %s\n",
				pid, runningCfg.Version, runningCfg.Socket, runningCfg.Driver, runningCfg.StorePath,
				time.Since(runningCfg.StartedAt).Round(time.Second))
			return nil
		},
	}
}

func newDaemonLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log",
		Long: `Print the daemon log file.

Examples:
  # Whole log
  appshelf daemon logs

  # Keep printing as the daemon writes
  appshelf daemon logs -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			logPath := paths.DaemonLogPath()

			if _, err := os.Stat(logPath); err != nil && !follow {
				return fmt.Errorf("no daemon log at %s", logPath)
			}

			t, err := tail.TailFile(logPath, tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: !follow,
				Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
				Logger:    stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", logPath, err)
			}
			defer t.Cleanup()

			ctx := cmd.Context()
			for {
				select {
				case line, ok := <-t.Lines:
					if !ok {
						return nil
					}
					if line.Err != nil {
						return line.Err
					}
					fmt.Fprintln(cmd.OutOrStdout(), line.Text)
				case <-ctx.Done():
					return t.Stop()
				}
			}
		},
	}

	cmd.Flags().BoolP("follow", "f", false, "Keep reading as the log grows")

	return cmd
}
