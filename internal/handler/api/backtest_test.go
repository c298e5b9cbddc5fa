package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/repository"
	"RegimeTrader/internal/services/backtest"
	"RegimeTrader/internal/services/regime"
	"RegimeTrader/internal/usecase"
	"RegimeTrader/pkg/config"
	xlogger "RegimeTrader/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[string][]models.Bar

func (m memStore) GetBars(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	b, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSymbolNotFound, symbol)
	}
	return append([]models.Bar(nil), b...), nil
}

// upDown labels positive-return rows Bull (state 0), the rest Bear (state 1).
type upDown struct{}

func (upDown) Train(x [][]float64) error {
	if len(x) < 100 {
		return regime.ErrInsufficientData
	}
	return nil
}

func (upDown) Decode(x [][]float64) (*domsvc.Decoding, error) {
	d := &domsvc.Decoding{}
	for i, row := range x {
		d.Rows = append(d.Rows, i)
		if row[0] > 0 {
			d.States = append(d.States, 0)
		} else {
			d.States = append(d.States, 1)
		}
	}
	return d, nil
}

func (u upDown) Posterior(x [][]float64) (*domsvc.Posterior, error) {
	d, _ := u.Decode(x)
	p := &domsvc.Posterior{Rows: d.Rows}
	for _, s := range d.States {
		row := []float64{0.1, 0.1}
		row[s] = 0.9
		p.Prob = append(p.Prob, row)
	}
	return p, nil
}

func (upDown) LabelForState(s int) models.Regime {
	if s == 0 {
		return models.RegimeBull
	}
	return models.RegimeBear
}

func series(n int) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	price := 50.0
	for i := range bars {
		if i > 0 {
			if (i/25)%2 == 0 {
				price *= math.Exp(0.003)
			} else {
				price *= math.Exp(-0.003)
			}
		}
		bars[i] = models.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    500,
		}
	}
	return bars
}

func newTestServer() *echo.Echo {
	store := memStore{"AAPL": series(300), "TINY": series(60)}
	cfg := config.Default()
	factory := func() domsvc.RegimeClassifier { return upDown{} }
	bt := usecase.NewBacktestUseCase(store, factory, backtest.NewDriver(cfg.Backtest, cfg.Policy), nil, nil)
	rg := usecase.NewRegimeUseCase(store, factory, nil)
	wl := usecase.NewWatchlistUseCase(bt, []string{"AAPL", "TINY"}, 2, nil)

	e := echo.New()
	NewBacktestHandler(xlogger.Nop(), bt, rg, wl).RegisterRoutes(e)
	return e
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func get(t *testing.T, e *echo.Echo, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestBacktestEndpoint(t *testing.T) {
	e := newTestServer()

	code, env := get(t, e, "/api/backtest?symbol=aapl&days=365")
	require.Equal(t, http.StatusOK, code)
	var res models.BacktestResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 280, res.Bars)
	assert.Equal(t, 2000.0, res.InitialCapital)
	assert.NotEmpty(t, res.Trades)
}

func TestBacktestEndpointValidation(t *testing.T) {
	e := newTestServer()

	code, env := get(t, e, "/api/backtest")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_REQUIRED")

	code, _ = get(t, e, "/api/backtest?symbol=AAPL&tf=4h")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, e, "/api/backtest?symbol=AAPL&days=5000")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBacktestEndpointErrors(t *testing.T) {
	e := newTestServer()

	code, env := get(t, e, "/api/backtest?symbol=TINY")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(env.Data), "ERR_UNPROCESSABLE")

	code, _ = get(t, e, "/api/backtest?symbol=MISSING")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRegimeEndpoint(t *testing.T) {
	e := newTestServer()

	code, env := get(t, e, "/api/regime?symbol=AAPL")
	require.Equal(t, http.StatusOK, code)
	var snap models.RegimeSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "AAPL", snap.Symbol)
	assert.InDelta(t, 0.9, snap.Confidence, 1e-12)
	assert.Contains(t, []models.Regime{models.RegimeBull, models.RegimeBear}, snap.Regime)
}

func TestWatchlistEndpoint(t *testing.T) {
	e := newTestServer()

	code, env := get(t, e, "/api/watchlist")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []usecase.WatchlistEntry `json:"rows"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 2)
	assert.Equal(t, int64(2), list.Total)
	assert.NotNil(t, list.Rows[0].Result)
	assert.NotEmpty(t, list.Rows[1].Error)

	code, env = get(t, e, "/api/watchlist?symbols=tiny")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "TINY", list.Rows[0].Symbol)
}
