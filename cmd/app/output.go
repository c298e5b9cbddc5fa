package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/internal/usecase"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, r *models.BacktestResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Symbol\t%s\n", r.Symbol)
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Bars\t%d\n", r.Bars)
	fmt.Fprintf(tw, "Initial capital\t%.2f\n", r.InitialCapital)
	fmt.Fprintf(tw, "Final equity\t%.2f\n", r.FinalEquity)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(tw, "Buy & hold\t%.2f%%\n", r.BuyHoldReturnPct)
	fmt.Fprintf(tw, "Alpha\t%.2f%%\n", r.Alpha)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(tw, "Trades\t%d\n", r.NumTrades)
	fmt.Fprintf(tw, "Win rate\t%.1f%%\n", r.WinRatePct)
	if r.AvgTradeDuration > 0 {
		fmt.Fprintf(tw, "Avg trade\t%s\n", r.AvgTradeDuration)
	}
	_ = tw.Flush()

	if len(r.RegimeCounts) > 0 {
		fmt.Fprintln(w, "\nRegime distribution:")
		printDistribution(w, r.RegimeCounts)
	}
}

func printSnapshot(w io.Writer, s *models.RegimeSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Symbol\t%s\n", s.Symbol)
	fmt.Fprintf(tw, "As of\t%s\n", s.Timestamp.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "Regime\t%s (state %d, %.1f%%)\n", s.Regime, s.State, s.Confidence*100)
	fmt.Fprintf(tw, "Bull states\t%v\n", s.BullStates)
	fmt.Fprintf(tw, "Bear states\t%v\n", s.BearStates)
	fmt.Fprintf(tw, "Bars\t%d\n", s.Bars)
	_ = tw.Flush()

	if len(s.Distribution) > 0 {
		fmt.Fprintln(w, "\nRegime distribution:")
		printDistribution(w, s.Distribution)
	}
}

func printDistribution(w io.Writer, counts map[models.Regime]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	regimes := make([]models.Regime, 0, len(counts))
	for r := range counts {
		regimes = append(regimes, r)
	}
	sort.Slice(regimes, func(i, j int) bool { return regimes[i] < regimes[j] })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range regimes {
		fmt.Fprintf(tw, "  %s\t%d bars\t%.1f%%\n", r, counts[r], 100*float64(counts[r])/float64(max(total, 1)))
	}
	_ = tw.Flush()
}

// printWatchlist prints successful runs ranked by alpha, then failures.
func printWatchlist(w io.Writer, entries []usecase.WatchlistEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tReturn %\tB&H %\tAlpha %\tMax DD %\tTrades\tWin %\t")
	for _, e := range usecase.RankByAlpha(entries) {
		r := e.Result
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.1f\t\n",
			e.Symbol, r.TotalReturnPct, r.BuyHoldReturnPct, r.Alpha, r.MaxDrawdownPct, r.NumTrades, r.WinRatePct)
	}
	_ = tw.Flush()

	for _, e := range entries {
		if e.Result == nil {
			fmt.Fprintf(w, "%s: %s\n", e.Symbol, e.Error)
		}
	}
}
