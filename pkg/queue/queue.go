package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotRunning  = errors.New("queue: not running")
	ErrUnknownType = errors.New("queue: no job registered for type")
	ErrQueueFull   = errors.New("queue: full")
)

// Queue delivers messages to registered jobs at least once.
type Queue interface {
	Register(job Job)
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
	Start() error
	Stop(ctx context.Context) error
}

// Config contains the configuration for the queue.
type Config struct {
	Workers    int           // number of workers
	QueueSize  int           // in-memory buffer size
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	return c
}

// Message represents a message in the queue.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the message payload into T.
func Decode[T any](msg Message) (*T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return &out, nil
}

type registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func (r *registry) register(job Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs == nil {
		r.jobs = make(map[string]Job)
	}
	if _, exists := r.jobs[job.Type()]; exists {
		return false
	}
	r.jobs[job.Type()] = job
	return true
}

func (r *registry) lookup(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[msgType]
	return job, ok
}
