package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/kafka"
)

type fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
	Close() error
}

type requeueWriter interface {
	WriteMessages(ctx context.Context, msgs ...segkafka.Message) error
	Close() error
}

// KafkaSource reads a consumer group. Kafka has no per-message nack, so Requeue
// appends a copy to the tail of the topic and then commits the original.
//
// Deliveries may settle out of order. A partition's offset only advances past
// messages that are all settled, so a crash never skips an in-flight message.
type KafkaSource struct {
	consumer fetcher
	requeue  requeueWriter

	mu       sync.Mutex
	inflight map[partitionKey]*partitionOffsets
}

type partitionKey struct {
	topic     string
	partition int
}

// partitionOffsets holds fetched offsets in fetch order and the settled ones
// not yet committed.
type partitionOffsets struct {
	pending []int64
	settled map[int64]kafka.Message
}

func NewKafkaSource(cfg kafka.Config) *KafkaSource {
	return &KafkaSource{
		consumer: kafka.NewConsumerFromConfig(cfg),
		requeue:  kafka.NewWriter(cfg.Brokers, cfg.Topic),
	}
}

func (s *KafkaSource) track(m kafka.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil {
		s.inflight = make(map[partitionKey]*partitionOffsets)
	}
	k := partitionKey{m.Topic, m.Partition}
	po, ok := s.inflight[k]
	if !ok {
		po = &partitionOffsets{settled: make(map[int64]kafka.Message)}
		s.inflight[k] = po
	}
	po.pending = append(po.pending, m.Offset)
}

// settle marks m done and commits the highest offset whose predecessors are
// all settled.
func (s *KafkaSource) settle(ctx context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.inflight[partitionKey{m.Topic, m.Partition}]
	if !ok {
		return s.consumer.Commit(ctx, m)
	}
	po.settled[m.Offset] = m

	var (
		last    kafka.Message
		advance bool
	)
	for len(po.pending) > 0 {
		head, ok := po.settled[po.pending[0]]
		if !ok {
			break
		}
		delete(po.settled, po.pending[0])
		po.pending = po.pending[1:]
		last, advance = head, true
	}
	if !advance {
		return nil
	}
	return s.consumer.Commit(ctx, last)
}

func (s *KafkaSource) Next(ctx context.Context) (Delivery, error) {
	m, err := s.consumer.Fetch(ctx)
	if err != nil {
		return Delivery{}, err
	}
	s.track(m)

	attrs := kafka.HeaderMap(m.Headers)
	id := attrs[broker.HeaderMessageID]
	delete(attrs, broker.HeaderMessageID)
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	}

	return Delivery{
		ID:          id,
		Body:        m.Value,
		Attributes:  attrs,
		PublishTime: m.Time,
		Ack: func(ctx context.Context) error {
			return s.settle(ctx, m)
		},
		Requeue: func(ctx context.Context) error {
			if err := s.requeue.WriteMessages(ctx, segkafka.Message{
				Key:     m.Key,
				Value:   m.Value,
				Headers: m.Headers,
				Time:    time.Now(),
			}); err != nil {
				return fmt.Errorf("requeue: %w", err)
			}
			return s.settle(ctx, m)
		},
	}, nil
}

func (s *KafkaSource) Close() error {
	werr := s.requeue.Close()
	if err := s.consumer.Close(); err != nil {
		return err
	}
	return werr
}
