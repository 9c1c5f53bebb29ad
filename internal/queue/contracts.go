package queue

import (
	"context"

	"github.com/evora/mediagen-back/internal/domain"
)

// Producer admits generation jobs into the processing queue.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer delivers admitted jobs to a handler. Handler errors signal
// infrastructure trouble (malformed message, lookup failure); a Job that
// reached a terminal state is never redelivered through this path.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
