package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RegimeTrader/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	tradesTotal      *prometheus.CounterVec
	trainingFailures *prometheus.CounterVec
	finalEquity      *prometheus.GaugeVec
	alpha            *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg
// (prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimetrader_backtest_runs_total",
				Help: "Backtest runs by outcome",
			},
			[]string{"symbol", "status"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimetrader_backtest_duration_seconds",
				Help:    "Wall time of a full backtest pipeline",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		tradesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimetrader_backtest_trades_total",
				Help: "Round trips opened by backtests",
			},
			[]string{"symbol"},
		),
		trainingFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimetrader_training_failures_total",
				Help: "Regime model training failures",
			},
			[]string{"kind"},
		),
		finalEquity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimetrader_backtest_final_equity",
				Help: "Final equity of the latest run for a symbol",
			},
			[]string{"symbol"},
		),
		alpha: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimetrader_backtest_alpha_pct",
				Help: "Strategy return minus buy-and-hold of the latest run",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimetrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordRun records one finished pipeline run.
func (r *Recorder) RecordRun(symbol, status string, seconds float64) {
	r.runsTotal.WithLabelValues(symbol, status).Inc()
	r.runDuration.WithLabelValues(status).Observe(seconds)
}

func (r *Recorder) RecordTrades(symbol string, n int) {
	r.tradesTotal.WithLabelValues(symbol).Add(float64(n))
}

func (r *Recorder) RecordTrainingFailure(kind string) {
	r.trainingFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordResult(symbol string, finalEquity, alpha float64) {
	r.finalEquity.WithLabelValues(symbol).Set(finalEquity)
	r.alpha.WithLabelValues(symbol).Set(alpha)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

var _ repository.Metrics = (*Recorder)(nil)

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRun(string, string, float64) {}
func (Nop) RecordTrades(string, int) {}
func (Nop) RecordTrainingFailure(string) {}
func (Nop) RecordResult(string, float64, float64) {}
func (Nop) RecordError(string) {}

var _ repository.Metrics = Nop{}
