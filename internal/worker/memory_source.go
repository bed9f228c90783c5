package worker

import (
	"context"

	"github.com/jmehdipour/stocksync/internal/broker"
)

// MemorySource drains a MemoryPublisher topic in the same process.
type MemorySource struct {
	pub   *broker.MemoryPublisher
	topic string
	ch    <-chan broker.Message
}

func NewMemorySource(pub *broker.MemoryPublisher, topicID string) *MemorySource {
	return &MemorySource{pub: pub, topic: topicID, ch: pub.Deliveries(topicID)}
}

func (s *MemorySource) Next(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return Delivery{}, ErrSourceClosed
		}
		return Delivery{
			ID:          m.ID,
			Body:        m.Body,
			Attributes:  m.Attributes,
			PublishTime: m.PublishedAt,
			Ack:         func(context.Context) error { return nil },
			Requeue: func(ctx context.Context) error {
				_, err := s.pub.Publish(ctx, s.topic, m.Body, m.Attributes)
				return err
			},
		}, nil
	}
}

// Close is a no-op; the publisher owns the channel.
func (s *MemorySource) Close() error { return nil }
