package worker

import (
	"context"
	"errors"
	"time"
)

var ErrSourceClosed = errors.New("source closed")

// Delivery is one broker message awaiting a push outcome. Exactly one of Ack or
// Requeue must be called.
type Delivery struct {
	ID          string
	Body        []byte
	Attributes  map[string]string
	PublishTime time.Time

	// Ack settles the message: delivered, or permanently rejected by the endpoint.
	Ack func(ctx context.Context) error
	// Requeue hands the message back to the broker for a later attempt.
	Requeue func(ctx context.Context) error
}

// Source yields deliveries until ctx ends or the source is closed.
type Source interface {
	Next(ctx context.Context) (Delivery, error)
	Close() error
}
