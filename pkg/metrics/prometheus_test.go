package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRun("AAPL", "ok", 1.2)
	r.RecordRun("AAPL", "ok", 0.4)
	r.RecordTrades("AAPL", 3)
	r.RecordTrainingFailure("insufficient_data")
	r.RecordResult("AAPL", 2100, 4.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("AAPL", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.tradesTotal.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainingFailures.WithLabelValues("insufficient_data")))
	assert.Equal(t, 2100.0, testutil.ToFloat64(r.finalEquity.WithLabelValues("AAPL")))

	n, err := testutil.GatherAndCount(reg, "regimetrader_backtest_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
