package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RegimeTrader/internal/di"
	"RegimeTrader/pkg/config"
	"RegimeTrader/pkg/server"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "regimetrader",
		Short:         "HMM regime detection and leveraged regime-following backtests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "config file path")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		backtestCmd(opts),
		regimeCmd(opts),
		watchlistCmd(opts),
		serveCmd(opts),
		workerCmd(opts),
		importCmd(opts),
	)
	return root
}

// withApp loads config, wires the application and runs fn with it.
func withApp(opts *rootOptions, fn func(app *server.App) error) error {
	cfg, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return fn(app)
}
