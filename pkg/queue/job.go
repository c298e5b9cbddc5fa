package queue

import "context"

// Job handles every message of one type.
type Job interface {
	// Type returns the message type the job handles.
	Type() string

	// Handle processes one message. A non-nil error schedules a retry until
	// the retry limit is reached, after which the message is dead-lettered.
	Handle(ctx context.Context, msg Message) error
}
