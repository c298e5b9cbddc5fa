package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is one keyed record. Value is sent as-is when it is a string or
// []byte and JSON encoded otherwise.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer publishes backtest output to Kafka.
type Producer struct {
	writer      messageWriter
	compression string
}

// NewProducer builds a synchronous writer for the configured brokers.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	codec, _ := compressionCodec(cfg.Compression)

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.KeyedByHash {
		balancer = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}
	return newProducer(w, cfg.Compression), nil
}

func newProducer(w messageWriter, compression string) *Producer {
	registerMetrics()
	return &Producer{writer: w, compression: compression}
}

// Publish sends one message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.write(ctx, topic, Message{Key: key, Value: value})
}

// PublishBatch sends messages to topic in a single write. Nothing is sent
// if any value fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	return p.write(ctx, topic, messages...)
}

func (p *Producer) write(ctx context.Context, topic string, messages ...Message) error {
	start := time.Now()
	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: start}
		size += len(v)
	}

	err := p.writer.WriteMessages(ctx, out...)
	observe(topic, p.compression, len(out), size, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %d message(s) to %s: %w", len(out), topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

var (
	metricsOnce     sync.Once
	publishedTotal  *prometheus.CounterVec
	publishedBytes  *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
)

func registerMetrics() {
	metricsOnce.Do(func() {
		publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regimetrader_kafka_messages_total",
			Help: "Messages written to Kafka by topic and outcome",
		}, []string{"topic", "compression", "result"})
		publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regimetrader_kafka_bytes_total",
			Help: "Payload bytes written to Kafka",
		}, []string{"topic", "compression"})
		publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regimetrader_kafka_write_seconds",
			Help:    "Kafka write latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observe(topic, compression string, count, size int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishedTotal.WithLabelValues(topic, compression, result).Add(float64(count))
	if err == nil {
		publishedBytes.WithLabelValues(topic, compression).Add(float64(size))
	}
	publishDuration.WithLabelValues(topic).Observe(d.Seconds())
}
