package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RegimeTrader/pkg/logger"
)

// MemoryQueue is an in-process Queue with the same retry and dead-letter
// behaviour as RedisQueue. Messages do not survive a restart.
type MemoryQueue struct {
	logger   *logger.Logger
	config   Config
	registry registry
	ch       chan Message
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	dlq      []Message
}

func NewMemoryQueue(lgr *logger.Logger, config Config) *MemoryQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: config,
		ch:     make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) Register(job Job) {
	if !q.registry.register(job) {
		q.logger.Warn("job already registered", logger.String("type", job.Type()))
	}
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	if q.ctx.Err() != nil {
		return ErrNotRunning
	}
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels in-flight handlers and waits for the workers to exit.
// Buffered messages are dropped.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		if n := len(q.ch); n > 0 {
			q.logger.Warn("memory queue dropped pending messages", logger.Int("count", n))
		}
		return nil
	}
}

// Enqueue buffers a message. It fails with ErrQueueFull instead of blocking.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if q.ctx.Err() != nil {
		return "", ErrNotRunning
	}
	if _, ok := q.registry.lookup(msgType); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return "", err
	}
	select {
	case q.ch <- msg:
		return msg.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// DeadLetters returns the messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dlq...)
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.ch:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	job, ok := q.registry.lookup(msg.Type)
	if !ok {
		q.deadLetter(msg)
		return
	}
	err := job.Handle(q.ctx, msg)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && q.ctx.Err() != nil {
		return
	}
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.deadLetter(msg)
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		select {
		case q.ch <- msg:
		case <-q.ctx.Done():
		}
	})
}

func (q *MemoryQueue) deadLetter(msg Message) {
	q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("type", msg.Type))
	q.mu.Lock()
	q.dlq = append(q.dlq, msg)
	q.mu.Unlock()
}
