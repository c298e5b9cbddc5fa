package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/queue"

	"github.com/google/uuid"
)

// BacktestJobType is the queue message type for asynchronous backtests.
const BacktestJobType = "backtest"

var ErrJobNotFound = errors.New("job not found")

// JobStore persists job status records.
type JobStore interface {
	Get(ctx context.Context, id string) (*models.Job, error)
	Put(ctx context.Context, j *models.Job) error
	Claim(ctx context.Context, id string, lease time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

type backtestJob struct {
	JobID     string `json:"job_id"`
	Symbol    string `json:"symbol"`
	Days      int    `json:"days"`
	Timeframe string `json:"tf"`
	Fresh     bool   `json:"fresh"`
}

// JobUseCase runs backtests through the queue. Submit records the job and
// enqueues it; Handle is the queue-side worker.
type JobUseCase struct {
	q         queue.Queue
	store     JobStore
	bt        *BacktestUseCase
	l         *applogger.Logger
	lease     time.Duration
	retries   int
	retryable func(error) bool
	now       func() time.Time
}

type JobOption func(*JobUseCase)

// WithRetryable marks which run errors go back to the queue for another
// attempt, at most retries times. Anything else fails the job immediately.
// retries should match the queue's retry limit.
func WithRetryable(retries int, fn func(error) bool) JobOption {
	return func(uc *JobUseCase) { uc.retries, uc.retryable = retries, fn }
}

func WithLease(d time.Duration) JobOption {
	return func(uc *JobUseCase) { uc.lease = d }
}

// NewJobUseCase registers the backtest job with q.
func NewJobUseCase(q queue.Queue, store JobStore, bt *BacktestUseCase, l *applogger.Logger, opts ...JobOption) *JobUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	uc := &JobUseCase{
		q:     q,
		store: store,
		bt:    bt,
		l:     l,
		lease: 10 * time.Minute,
		retryable: func(err error) bool {
			return errors.Is(err, context.DeadlineExceeded)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	q.Register(uc)
	return uc
}

func (uc *JobUseCase) Type() string { return BacktestJobType }

// Submit validates p, stores a queued job and enqueues it.
func (uc *JobUseCase) Submit(ctx context.Context, p BacktestParams) (*models.Job, error) {
	if err := uc.bt.defaults(&p); err != nil {
		return nil, err
	}
	now := uc.now().UTC()
	job := &models.Job{
		ID:        uuid.NewString(),
		Symbol:    p.Symbol,
		Days:      p.Days,
		Timeframe: string(p.Timeframe),
		State:     models.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// stored first so a fast worker always finds the record
	if err := uc.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	payload := backtestJob{JobID: job.ID, Symbol: p.Symbol, Days: p.Days, Timeframe: string(p.Timeframe), Fresh: p.Fresh}
	if _, err := uc.q.Enqueue(ctx, BacktestJobType, payload); err != nil {
		job.State, job.Error, job.UpdatedAt = models.JobFailed, err.Error(), uc.now().UTC()
		if perr := uc.store.Put(ctx, job); perr != nil {
			uc.l.Warn("store job failed", applogger.String("job_id", job.ID), applogger.Error(perr))
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	uc.l.Info("backtest job queued", applogger.String("job_id", job.ID), applogger.String("symbol", job.Symbol))
	return job, nil
}

// Get returns ErrJobNotFound for unknown or expired jobs.
func (uc *JobUseCase) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// Handle runs one queued backtest. Only retryable failures are returned to
// the queue; the rest are recorded on the job.
func (uc *JobUseCase) Handle(ctx context.Context, msg queue.Message) error {
	in, err := queue.Decode[backtestJob](msg)
	if err != nil {
		uc.l.Error("bad backtest job payload", applogger.String("msg_id", msg.ID), applogger.Error(err))
		return nil
	}

	ok, err := uc.store.Claim(ctx, in.JobID, uc.lease)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", in.JobID, err)
	}
	if !ok {
		uc.l.Debug("backtest job already claimed", applogger.String("job_id", in.JobID))
		return nil
	}
	defer func() {
		if err := uc.store.Release(context.WithoutCancel(ctx), in.JobID); err != nil {
			uc.l.Warn("release job failed", applogger.String("job_id", in.JobID), applogger.Error(err))
		}
	}()

	job, err := uc.store.Get(ctx, in.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", in.JobID, err)
	}
	if job == nil {
		// status expired; rebuild it from the message
		job = &models.Job{ID: in.JobID, Symbol: in.Symbol, Days: in.Days, Timeframe: in.Timeframe, CreatedAt: msg.Timestamp}
	}
	if job.Finished() {
		return nil
	}

	job.State, job.Attempts, job.UpdatedAt = models.JobRunning, msg.Attempts+1, uc.now().UTC()
	uc.put(ctx, job)

	res, runErr := uc.bt.Run(ctx, BacktestParams{
		Symbol:    in.Symbol,
		Days:      in.Days,
		Timeframe: domrepo.Timeframe(in.Timeframe),
		Fresh:     in.Fresh,
	})

	job.UpdatedAt = uc.now().UTC()
	switch {
	case runErr == nil:
		job.State, job.Error, job.Result = models.JobDone, "", res
	case ctx.Err() != nil:
		// shutting down; the queue redelivers it
		job.State, job.Error = models.JobQueued, ""
		uc.put(context.WithoutCancel(ctx), job)
		return runErr
	case msg.Attempts < uc.retries && uc.retryable(runErr):
		job.State, job.Error = models.JobQueued, runErr.Error()
		uc.put(context.WithoutCancel(ctx), job)
		return runErr
	default:
		job.State, job.Error = models.JobFailed, runErr.Error()
	}
	uc.put(context.WithoutCancel(ctx), job)
	return nil
}

func (uc *JobUseCase) put(ctx context.Context, job *models.Job) {
	if err := uc.store.Put(ctx, job); err != nil {
		uc.l.Warn("store job failed", applogger.String("job_id", job.ID), applogger.Error(err))
	}
}
