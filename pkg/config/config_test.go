package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 7, c.Regime.States)
	assert.Equal(t, "diag", c.Regime.CovarianceType)
	assert.Equal(t, 1000, c.Regime.Iterations)
	assert.Equal(t, 100, c.Regime.MinSamples)
	assert.Equal(t, int64(42), c.Regime.Seed)
	assert.Equal(t, 2000.0, c.Backtest.InitialCapital)
	assert.Equal(t, 2.5, c.Backtest.Leverage)
	assert.Equal(t, 48*time.Hour, c.Backtest.Cooldown)
	assert.Equal(t, 24, c.Backtest.SampleEvery)
	assert.Equal(t, 7, c.Policy.MinConditions)
	assert.False(t, c.Policy.EnforceVote)
	assert.Equal(t, 2, c.Jobs.RetryLimit)
	assert.Equal(t, 24*time.Hour, c.Jobs.StatusTTL)
	require.NoError(t, c.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
backtest:
  leverage: 1
  cooldown: 0s
watchlist:
  symbols: [AAPL, MSFT]
`))
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 1.0, c.Backtest.Leverage)
	assert.Equal(t, time.Duration(0), c.Backtest.Cooldown)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Watchlist.Symbols)
	// untouched sections keep their defaults
	assert.Equal(t, 7, c.Regime.States)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"covariance":   "regime:\n  covariance_type: full\n",
		"states":       "regime:\n  states: 1\n",
		"leverage":     "backtest:\n  leverage: 0.5\n",
		"kafka":        "kafka:\n  enabled: true\n  brokers: []\n",
		"source":       "data:\n  source: clickhouse\n",
		"empty symbol": "watchlist:\n  symbols: [\"AAPL\", \" \"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))

	t.Setenv("SYMBOLS", "AAPL, TSLA ,")
	t.Setenv("REDIS_ADDR", "cache:6380")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "TSLA"}, c.Watchlist.Symbols)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
}

func TestLoadRepositoryConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Watchlist.Symbols, 28)
}
