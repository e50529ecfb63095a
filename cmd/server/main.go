package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ghostchat-server/internal/app"
	"github.com/vovakirdan/ghostchat-server/internal/config"
	"github.com/vovakirdan/ghostchat-server/internal/log"
)

var (
	flagConfigPath string
	flagAddr       string
	flagLogLevel   string
	flagLogFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "ghostchat",
	Short:         "Two-party ephemeral chat relay over WebSocket",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file populated with defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfigPath, "config", "", "path to config.yaml (default ./config.yaml)")
	flags.StringVar(&flagAddr, "addr", "", "HTTP listen address, overrides config and env")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&flagLogFormat, "log-format", "", "log format: console or json")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ghostchat: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	bootLogger := log.New("info", "console")

	cfg, cfgPath, err := config.Load(bootLogger, flagConfigPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	cfg.UpdateFrom(config.Config{
		Addr:      flagAddr,
		LogLevel:  flagLogLevel,
		LogFormat: flagLogFormat,
	})

	logger := log.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(&cfg, logger)

	logger.Info().Str("addr", cfg.Addr).Msg("starting ghostchat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	path = config.ResolvePath(path)
	if err := config.WriteDefault(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
