package kafka

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer settings. Backtest output is small and
// bursty, so writes are synchronous and batches flush almost immediately.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	MaxAttempts  int
	Compression  string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	KeyedByHash  bool
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		RequiredAcks: -1,
		MaxAttempts:  3,
		Compression:  "gzip",
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func WithBrokers(brokers ...string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithDelivery sets the acks required per write (-1 = all in-sync replicas)
// and how many times the writer tries before giving up.
func WithDelivery(acks, maxAttempts int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks, c.MaxAttempts = acks, maxAttempts }
}

// WithCompression takes gzip, snappy, lz4 or zstd.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.WriteTimeout = d }
}

// WithKeyedPartitioning routes messages by key hash so every result and
// trade of one symbol lands on one partition, in order.
func WithKeyedPartitioning() ProducerOption {
	return func(c *ProducerConfig) { c.KeyedByHash = true }
}

func (c *ProducerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: brokers are required")
	}
	if _, err := compressionCodec(c.Compression); err != nil {
		return err
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("kafka: max attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression %q", name)
}
