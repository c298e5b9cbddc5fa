package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

type recordingJob struct {
	failFirst int32
	calls     atomic.Int32
	mu        sync.Mutex
	seen      []echoPayload
}

func (j *recordingJob) Type() string { return "echo" }

func (j *recordingJob) Handle(_ context.Context, msg Message) error {
	n := j.calls.Add(1)
	if n <= j.failFirst {
		return errors.New("transient")
	}
	p, err := Decode[echoPayload](msg)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.seen = append(j.seen, *p)
	j.mu.Unlock()
	return nil
}

func (j *recordingJob) payloads() []echoPayload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]echoPayload(nil), j.seen...)
}

func stop(t *testing.T, q Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(nil, Config{Workers: 2})
	job := &recordingJob{}
	q.Register(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	id, err := q.Enqueue(context.Background(), "echo", echoPayload{Symbol: "AAPL", Days: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return len(job.payloads()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, echoPayload{Symbol: "AAPL", Days: 30}, job.payloads()[0])
}

func TestMemoryQueueRetriesThenSucceeds(t *testing.T) {
	q := NewMemoryQueue(nil, Config{RetryLimit: 2, RetryDelay: 5 * time.Millisecond})
	job := &recordingJob{failFirst: 2}
	q.Register(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	_, err := q.Enqueue(context.Background(), "echo", echoPayload{Symbol: "MSFT"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(job.payloads()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), job.calls.Load())
	assert.Empty(t, q.DeadLetters())
}

func TestMemoryQueueDeadLettersAfterRetryLimit(t *testing.T) {
	q := NewMemoryQueue(nil, Config{RetryLimit: 1, RetryDelay: 5 * time.Millisecond})
	job := &recordingJob{failFirst: 100}
	q.Register(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	id, err := q.Enqueue(context.Background(), "echo", echoPayload{Symbol: "TSLA"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	dead := q.DeadLetters()[0]
	assert.Equal(t, id, dead.ID)
	assert.Equal(t, 1, dead.Attempts)
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(nil, Config{QueueSize: 1})
	q.Register(&recordingJob{})

	_, err := q.Enqueue(context.Background(), "unknown", nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	// not started: the single buffer slot fills up
	_, err = q.Enqueue(context.Background(), "echo", echoPayload{})
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), "echo", echoPayload{})
	assert.ErrorIs(t, err, ErrQueueFull)

	require.NoError(t, q.Start())
	stop(t, q)
	_, err = q.Enqueue(context.Background(), "echo", echoPayload{})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestDecodeRejectsBadPayload(t *testing.T) {
	_, err := Decode[echoPayload](Message{Type: "echo", Payload: []byte(`{"days":"x"}`)})
	assert.Error(t, err)
}
