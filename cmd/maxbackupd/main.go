// Command maxbackupd is the backup service: it supervises per-user backup
// workers and serves the control protocol on the local IPC endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"maxbackup/internal/backup"
	"maxbackup/internal/daemonconfig"
	"maxbackup/internal/fs"
	"maxbackup/internal/history"
	"maxbackup/internal/identity"
	"maxbackup/internal/logging"
	"maxbackup/internal/server"
	"maxbackup/internal/state"
	"maxbackup/internal/supervisor"
)

// version is set at build time.
var version = "dev"

var configFlag string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "maxbackupd",
	Short: "Per-machine backup service",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the service until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemonconfig.Load(configFlag)
		if err != nil {
			return fmt.Errorf("loading daemon config: %w", err)
		}
		return run(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the service version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	runCmd.Flags().StringVar(&configFlag, "config", "", "path to the daemon config file")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func run(cfg *daemonconfig.Config) error {
	logger := logging.NewRollingLogger(cfg.ServiceLogFile(), "service", cfg.Level())
	defer logger.Close()

	store := state.NewStore(cfg.StateFile())
	svcCfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading service state: %w", err)
	}

	var recorder backup.RunRecorder = backup.NopRecorder{}
	hist, err := history.NewStore(cfg.HistoryFile())
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
	} else {
		recorder = hist
		defer hist.Close()
	}

	resolver := identity.NewOSResolver()
	sup := supervisor.New(supervisor.Options{
		Store:      store,
		Resolver:   resolver,
		Filesystem: fs.NewOSFilesystem(),
		Recorder:   recorder,
		Logger:     logger,
	})

	listener, err := server.Listen(cfg.PipeName)
	if err != nil {
		return fmt.Errorf("opening control endpoint: %w", err)
	}
	srv := server.New(listener, sup, resolver, logger, svcCfg.PipeTimeout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("service starting", "version", version, "pipe", cfg.PipeName, "dataDir", cfg.DataDir)
	if err := sup.StartAllFromState(); err != nil {
		logger.Error("cannot start workers from state", "error", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("control endpoint failed", "error", err)
		}
	}

	logger.Info("service stopping")
	srv.Close()
	sup.Shutdown()
	logger.Info("service stopped")
	return nil
}
