package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/repository"
	"RegimeTrader/pkg/cache"
	"RegimeTrader/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("source flaky")

// flakyStore fails the first n fetches.
type flakyStore struct {
	fakeStore
	failures int
}

func (f *flakyStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return nil, errFlaky
	}
	return f.fakeStore.GetBars(ctx, symbol, from, to, tf)
}

func newJobUseCase(t *testing.T, store domrepo.BarStore, opts ...JobOption) (*JobUseCase, *repository.JobStore) {
	t.Helper()
	mc := cache.NewMemoryCache()
	js := repository.NewJobStore(mc, time.Hour)
	q := queue.NewMemoryQueue(nil, queue.Config{RetryLimit: 2, RetryDelay: 5 * time.Millisecond})
	uc := NewJobUseCase(q, js, newUseCase(store, nil, signFactory), nil, opts...)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
		_ = mc.Close()
	})
	return uc, js
}

func waitFinished(t *testing.T, uc *JobUseCase, id string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := uc.Get(context.Background(), id)
		if err != nil || !j.Finished() {
			return false
		}
		job = j
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestJobSubmitRunsBacktest(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}
	uc, _ := newJobUseCase(t, store)

	job, err := uc.Submit(context.Background(), BacktestParams{Symbol: "aapl"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", job.Symbol)
	assert.Equal(t, models.JobQueued, job.State)
	assert.Equal(t, "1h", job.Timeframe)

	done := waitFinished(t, uc, job.ID)
	assert.Equal(t, models.JobDone, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, 180, done.Result.Bars)
	assert.Equal(t, 1, done.Attempts)
}

func TestJobNonRetryableFailure(t *testing.T) {
	uc, _ := newJobUseCase(t, &fakeStore{bars: map[string][]models.Bar{}})

	job, err := uc.Submit(context.Background(), BacktestParams{Symbol: "NOPE"})
	require.NoError(t, err)

	done := waitFinished(t, uc, job.ID)
	assert.Equal(t, models.JobFailed, done.State)
	assert.Contains(t, done.Error, "symbol not found")
	assert.Equal(t, 1, done.Attempts)
}

func TestJobRetriesTransientFailure(t *testing.T) {
	store := &flakyStore{fakeStore: fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}, failures: 1}
	uc, _ := newJobUseCase(t, store, WithRetryable(2, func(err error) bool { return errors.Is(err, errFlaky) }))

	job, err := uc.Submit(context.Background(), BacktestParams{Symbol: "AAPL"})
	require.NoError(t, err)

	done := waitFinished(t, uc, job.ID)
	assert.Equal(t, models.JobDone, done.State)
	assert.Equal(t, 2, done.Attempts)
	assert.Empty(t, done.Error)
}

func TestJobRetriesExhausted(t *testing.T) {
	store := &flakyStore{fakeStore: fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}, failures: 10}
	uc, _ := newJobUseCase(t, store, WithRetryable(1, func(err error) bool { return errors.Is(err, errFlaky) }))

	job, err := uc.Submit(context.Background(), BacktestParams{Symbol: "AAPL"})
	require.NoError(t, err)

	done := waitFinished(t, uc, job.ID)
	assert.Equal(t, models.JobFailed, done.State)
	assert.Equal(t, 2, done.Attempts)
	assert.Contains(t, done.Error, errFlaky.Error())
}

func TestJobSubmitValidatesAndGetMisses(t *testing.T) {
	uc, _ := newJobUseCase(t, &fakeStore{})
	ctx := context.Background()

	_, err := uc.Submit(ctx, BacktestParams{Symbol: " "})
	assert.Error(t, err)

	_, err = uc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobHandleSkipsClaimedAndFinished(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}
	uc, js := newJobUseCase(t, store)
	ctx := context.Background()

	msg := queue.Message{ID: "m1", Type: BacktestJobType, Payload: []byte(`{"job_id":"j1","symbol":"AAPL","days":30,"tf":"1h"}`)}

	ok, err := js.Claim(ctx, "j1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, uc.Handle(ctx, msg))
	assert.Equal(t, 0, store.calls, "claimed elsewhere")
	require.NoError(t, js.Release(ctx, "j1"))

	require.NoError(t, js.Put(ctx, &models.Job{ID: "j1", State: models.JobDone}))
	require.NoError(t, uc.Handle(ctx, msg))
	assert.Equal(t, 0, store.calls, "already finished")

	// a bad payload is dropped, not retried
	assert.NoError(t, uc.Handle(ctx, queue.Message{ID: "m2", Payload: []byte(`not json`)}))
}
