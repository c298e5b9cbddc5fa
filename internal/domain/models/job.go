package models

import "time"

type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job tracks an asynchronous backtest submitted through the queue.
type Job struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Days      int             `json:"days"`
	Timeframe string          `json:"tf"`
	State     JobState        `json:"state"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
	Result    *BacktestResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.State == JobDone || j.State == JobFailed
}
