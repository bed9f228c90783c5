package broker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// RabbitPublisher publishes to a durable topic exchange with the topic id as
// routing key. Each topic id gets a durable queue "<prefix><topicID>" bound to it
// so messages survive until a consumer attaches.
//
// A channel exception (failed declare, publish on a missing exchange) closes
// the channel; the next Publish opens a fresh one on the same connection.
type RabbitPublisher struct {
	conn        io.Closer
	open        func() (amqpChannel, error)
	exchange    string
	queuePrefix string

	mu     sync.Mutex
	ch     amqpChannel
	topics map[string]string
	closed bool
}

func NewRabbitPublisher(url, exchange, queuePrefix string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, unavailable("rabbitmq dial", err)
	}

	open := func() (amqpChannel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("exchange: %w", err)
		}
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("confirm: %w", err)
		}
		return ch, nil
	}

	ch, err := open()
	if err != nil {
		conn.Close()
		return nil, unavailable("rabbitmq", err)
	}

	return &RabbitPublisher{
		conn:        conn,
		open:        open,
		exchange:    exchange,
		queuePrefix: queuePrefix,
		ch:          ch,
		topics:      make(map[string]string),
	}, nil
}

// channel returns a usable channel, reopening a closed one. Declarations are
// cached per channel, so they are redone after a reopen. Must be called with mu held.
func (p *RabbitPublisher) channel() (amqpChannel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.open()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	p.topics = make(map[string]string)
	return ch, nil
}

// QueueName is the durable queue bound for topicID.
func QueueName(prefix, topicID string) string { return prefix + topicID }

// declare must be called with mu held.
func (p *RabbitPublisher) declare(ch amqpChannel, topicID string) error {
	if _, ok := p.topics[topicID]; ok {
		return nil
	}
	q, err := ch.QueueDeclare(QueueName(p.queuePrefix, topicID), true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, topicID, p.exchange, false, nil); err != nil {
		return err
	}
	p.topics[topicID] = q.Name
	return nil
}

// Publish waits for the broker confirm before returning the message id.
func (p *RabbitPublisher) Publish(ctx context.Context, topicID string, payload any, attrs map[string]string) (string, error) {
	body, err := encode(payload)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", unavailable("rabbitmq "+topicID, errClosed)
	}
	ch, err := p.channel()
	if err != nil {
		return "", unavailable("rabbitmq reopen "+topicID, err)
	}
	if err := p.declare(ch, topicID); err != nil {
		return "", unavailable("rabbitmq declare "+topicID, err)
	}

	id := uuid.NewString()
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, topicID, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    time.Now().UTC(),
		Headers:      headersTable(attrs),
		Body:         body,
	})
	if err != nil {
		return "", unavailable("rabbitmq publish "+topicID, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return "", unavailable("rabbitmq confirm "+topicID, err)
	}
	if !acked {
		return "", unavailable("rabbitmq confirm "+topicID, fmt.Errorf("nacked by broker"))
	}
	return id, nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.topics = map[string]string{}
	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

func headersTable(attrs map[string]string) amqp.Table {
	if len(attrs) == 0 {
		return nil
	}
	t := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		t[k] = v
	}
	return t
}
