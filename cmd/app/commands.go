package main

import (
	"fmt"

	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/repository"
	"RegimeTrader/internal/usecase"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/server"
	"RegimeTrader/pkg/util"

	"github.com/spf13/cobra"
)

func backtestCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol  string
		csvPath string
		days    int
		tf      string
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Train a regime model on one symbol and replay its history",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := usecase.BacktestParams{
				Symbol:    symbol,
				Days:      days,
				Timeframe: domrepo.Timeframe(tf),
				Fresh:     fresh,
			}
			if csvPath != "" {
				bars, err := repository.LoadCSVFile(csvPath)
				if err != nil {
					return err
				}
				p.Bars = bars
			}
			return withApp(opts, func(app *server.App) error {
				res, err := app.Backtest(cmd.Context(), p)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), res)
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol")
	cmd.Flags().StringVar(&csvPath, "csv", "", "read bars from this CSV instead of the configured source")
	cmd.Flags().IntVar(&days, "days", 0, "lookback in days (config default when 0)")
	cmd.Flags().StringVar(&tf, "tf", "", "bar timeframe: 5m, 15m, 1h or 1d")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore cached results")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func regimeCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol string
		days   int
		tf     string
	)
	cmd := &cobra.Command{
		Use:   "regime",
		Short: "Show the current market regime for a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *server.App) error {
				snap, err := app.Regime(cmd.Context(), usecase.RegimeParams{
					Symbol:    symbol,
					Days:      days,
					Timeframe: domrepo.Timeframe(tf),
				})
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol")
	cmd.Flags().IntVar(&days, "days", 0, "lookback in days (config default when 0)")
	cmd.Flags().StringVar(&tf, "tf", "", "bar timeframe: 5m, 15m, 1h or 1d")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func watchlistCmd(opts *rootOptions) *cobra.Command {
	var (
		symbols []string
		days    int
		tf      string
	)
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Backtest every watchlist symbol and rank them by alpha",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *server.App) error {
				entries := app.Watchlist(cmd.Context(), util.NormalizeSymbols(symbols), days, domrepo.Timeframe(tf))
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				printWatchlist(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "symbols to run instead of the configured watchlist")
	cmd.Flags().IntVar(&days, "days", 0, "lookback in days (config default when 0)")
	cmd.Flags().StringVar(&tf, "tf", "", "bar timeframe: 5m, 15m, 1h or 1d")
	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *server.App) error {
				return app.Serve(cmd.Context())
			})
		},
	}
}

func workerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued backtest jobs without serving HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *server.App) error {
				return app.Work(cmd.Context())
			})
		},
	}
}

func importCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol  string
		csvPath string
		tf      string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a bar CSV into ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, err := repository.LoadCSVFile(csvPath)
			if err != nil {
				return err
			}
			return withApp(opts, func(app *server.App) error {
				n, err := app.Import(cmd.Context(), util.NormalizeSymbol(symbol), domrepo.Timeframe(tf), bars)
				if err != nil {
					return fmt.Errorf("import %s: %w", symbol, err)
				}
				app.Logger().Info("bars imported",
					applogger.String("symbol", util.NormalizeSymbol(symbol)),
					applogger.String("tf", tf),
					applogger.Int("rows", n))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol")
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file with timestamp,open,high,low,close,volume")
	cmd.Flags().StringVar(&tf, "tf", string(domrepo.DefaultTimeframe()), "bar timeframe of the file")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
