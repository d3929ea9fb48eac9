package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightwatch/nightwatch/pkg/action"
	"github.com/nightwatch/nightwatch/pkg/api"
	"github.com/nightwatch/nightwatch/pkg/config"
	"github.com/nightwatch/nightwatch/pkg/log"
	"github.com/nightwatch/nightwatch/pkg/manager"
	"github.com/nightwatch/nightwatch/pkg/provider"
	"github.com/nightwatch/nightwatch/pkg/taskloader"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	exitConfigError = -1
	exitStartError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nightwatch <config-file>",
	Short: "night-watch - periodic monitoring daemon",
	Long: `night-watch polls providers on a per-task schedule, compares the
collected values against thresholds, and fires notification actions when a
task fails or comes back to normal. Tasks, providers and actions are
configured through YAML files and can be managed at runtime over the HTTP
control API.`,
	Version: Version,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(args[0])
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"night-watch version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
}

func run(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot load configuration: %v\n", err)
		os.Exit(exitConfigError)
	}

	log.Init(log.Config{
		Level:      cfg.Logging.Level,
		JSONOutput: cfg.Logging.JSON,
	})
	logger := log.WithComponent("main")
	logger.Info().Str("version", Version).Str("config", configPath).Msg("night-watch starting")

	providers := provider.NewRegistry(cfg.Daemon.ProvidersLocation)
	actions := action.NewRegistry(cfg.Daemon.ActionsLocation)
	loader := taskloader.NewLoader(cfg.Daemon.TasksLocation)
	mgr := manager.New(loader, providers, actions)

	if err := mgr.Start(); err != nil {
		logger.Error().Err(err).Msg("failed to start task manager")
		os.Exit(exitStartError)
	}

	var server *api.Server
	if cfg.Daemon.WebserverEnabled {
		server = api.NewServer(mgr)
		addr := net.JoinHostPort("", strconv.Itoa(cfg.Daemon.WebserverPort))
		go func() {
			if err := server.Start(addr); err != nil {
				logger.Error().Err(err).Msg("control API server failed")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info().Str("signal", received.String()).Msg("shutting down")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("control API shutdown failed")
		}
	}
	if err := mgr.Stop(true); err != nil {
		logger.Error().Err(err).Msg("task manager shutdown failed")
	}
	logger.Info().Msg("night-watch stopped")
}
