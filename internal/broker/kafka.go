package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/jmehdipour/stocksync/internal/kafka"
	"github.com/jmehdipour/stocksync/internal/util"
)

// HeaderMessageID carries the id Publish returns; Kafka offsets are not known
// until the write is acknowledged and are not stable across partitions.
const HeaderMessageID = "message_id"

var errClosed = errors.New("publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...segkafka.Message) error
	Close() error
}

// KafkaPublisher writes to "<prefix><topicID>" through one writer per topic.
type KafkaPublisher struct {
	prefix    string
	newWriter func(topic string) messageWriter

	mu      sync.Mutex
	writers map[string]messageWriter
	closed  bool
}

func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		prefix: topicPrefix,
		newWriter: func(topic string) messageWriter {
			return kafka.NewWriter(brokers, topic)
		},
		writers: make(map[string]messageWriter),
	}
}

func (p *KafkaPublisher) writer(topicID string) (messageWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errClosed
	}
	if w, ok := p.writers[topicID]; ok {
		return w, nil
	}
	w := p.newWriter(p.prefix + topicID)
	p.writers[topicID] = w
	return w, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topicID string, payload any, attrs map[string]string) (string, error) {
	body, err := encode(payload)
	if err != nil {
		return "", err
	}

	w, err := p.writer(topicID)
	if err != nil {
		return "", unavailable("kafka "+topicID, err)
	}

	id := util.New()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: HeaderMessageID, Value: []byte(id)})
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := w.WriteMessages(ctx, segkafka.Message{
		Key:     []byte(id),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}); err != nil {
		return "", unavailable("kafka "+topicID, err)
	}
	return id, nil
}

// Close releases every cached writer. Later Publish calls fail.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}
