package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "results", []byte("AAPL"), map[string]any{"alpha": 1.5}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "results", w.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	assert.JSONEq(t, `{"alpha":1.5}`, string(w.msgs[0].Value))

	require.NoError(t, p.PublishBatch(context.Background(), "results", []Message{
		{Key: []byte("a"), Value: "raw"},
		{Key: []byte("b"), Value: []byte("bytes")},
	}))
	require.Len(t, w.msgs, 3)
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "gzip")
	err := p.Publish(context.Background(), "results", nil, "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorContains(t, err, "brokers")

	_, err = NewProducer(WithBrokers("localhost:9092"), WithCompression("brotli"))
	assert.ErrorContains(t, err, "compression")

	_, err = NewProducer(WithBrokers("localhost:9092"), WithDelivery(-1, 0))
	assert.ErrorContains(t, err, "attempts")

	p, err := NewProducer(WithBrokers("localhost:9092"), WithCompression("zstd"), WithKeyedPartitioning())
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
