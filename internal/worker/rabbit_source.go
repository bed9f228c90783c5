package worker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/config"
)

// RabbitSource consumes the durable queue bound to one topic id with manual acks.
type RabbitSource struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	msgs <-chan amqp.Delivery
}

func NewRabbitSource(cfg config.RabbitMQConfig, topicID string) (*RabbitSource, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(broker.QueueName(cfg.QueuePrefix, topicID), true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, topicID, cfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitSource{conn: conn, ch: ch, msgs: msgs}, nil
}

func (s *RabbitSource) Next(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	case m, ok := <-s.msgs:
		if !ok {
			return Delivery{}, ErrSourceClosed
		}
		return rabbitDelivery(m), nil
	}
}

func rabbitDelivery(m amqp.Delivery) Delivery {
	attrs := make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		attrs[k] = fmt.Sprint(v)
	}
	return Delivery{
		ID:          m.MessageId,
		Body:        m.Body,
		Attributes:  attrs,
		PublishTime: m.Timestamp,
		Ack:         func(context.Context) error { return m.Ack(false) },
		Requeue:     func(context.Context) error { return m.Nack(false, true) },
	}
}

func (s *RabbitSource) Close() error {
	_ = s.ch.Close()
	return s.conn.Close()
}
