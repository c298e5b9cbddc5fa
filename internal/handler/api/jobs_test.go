package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"RegimeTrader/internal/domain/models"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/repository"
	"RegimeTrader/internal/services/backtest"
	"RegimeTrader/internal/usecase"
	"RegimeTrader/pkg/cache"
	"RegimeTrader/pkg/config"
	xlogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobsServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := memStore{"AAPL": series(300)}
	cfg := config.Default()
	factory := func() domsvc.RegimeClassifier { return upDown{} }
	bt := usecase.NewBacktestUseCase(store, factory, backtest.NewDriver(cfg.Backtest, cfg.Policy), nil, nil)

	mc := cache.NewMemoryCache()
	q := queue.NewMemoryQueue(nil, queue.Config{})
	jobs := usecase.NewJobUseCase(q, repository.NewJobStore(mc, time.Hour), bt, nil)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
		_ = mc.Close()
	})

	e := echo.New()
	NewJobsHandler(xlogger.Nop(), jobs).RegisterRoutes(e)
	return e
}

func postJSON(t *testing.T, e *echo.Echo, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestJobsSubmitAndPoll(t *testing.T) {
	e := newJobsServer(t)

	rec, env := postJSON(t, e, "/api/jobs/backtest", `{"symbol":"aapl","days":365}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var job models.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "AAPL", job.Symbol)
	assert.Equal(t, 365, job.Days)
	assert.Equal(t, "/api/jobs/"+job.ID, rec.Header().Get(echo.HeaderLocation))

	require.Eventually(t, func() bool {
		code, env := get(t, e, "/api/jobs/"+job.ID)
		if code != http.StatusOK {
			return false
		}
		var got models.Job
		if err := json.Unmarshal(env.Data, &got); err != nil {
			return false
		}
		job = got
		return got.Finished()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.JobDone, job.State)
	require.NotNil(t, job.Result)
	assert.Equal(t, 280, job.Result.Bars)
}

func TestJobsValidationAndNotFound(t *testing.T) {
	e := newJobsServer(t)

	rec, _ := postJSON(t, e, "/api/jobs/backtest", `{"days":365}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ := get(t, e, "/api/jobs/unknown")
	assert.Equal(t, http.StatusNotFound, code)
}
