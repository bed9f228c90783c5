package broker

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/jmehdipour/stocksync/internal/util"
)

// Message is a payload held by MemoryPublisher.
type Message struct {
	ID          string
	Topic       string
	Body        []byte
	Attributes  map[string]string
	PublishedAt time.Time
}

type memoryTopic struct {
	msgs []Message
	ch   chan Message
}

const memoryBuffer = 1024

var errBufferFull = errors.New("delivery buffer full")

// MemoryPublisher keeps published messages in process. Each topic also exposes
// a buffered delivery channel for in-process consumers; a publish that finds the
// buffer full fails rather than dropping the delivery.
type MemoryPublisher struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
	closed bool

	// Err, when set, makes every Publish fail with ErrBrokerUnavailable.
	Err error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{topics: make(map[string]*memoryTopic)}
}

func (p *MemoryPublisher) topic(topicID string) *memoryTopic {
	t, ok := p.topics[topicID]
	if !ok {
		t = &memoryTopic{ch: make(chan Message, memoryBuffer)}
		p.topics[topicID] = t
	}
	return t
}

func (p *MemoryPublisher) Publish(_ context.Context, topicID string, payload any, attrs map[string]string) (string, error) {
	body, err := encode(payload)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", unavailable("memory "+topicID, errClosed)
	}
	if p.Err != nil {
		return "", unavailable("memory "+topicID, p.Err)
	}

	m := Message{
		ID:          util.New(),
		Topic:       topicID,
		Body:        body,
		Attributes:  maps.Clone(attrs),
		PublishedAt: time.Now().UTC(),
	}
	t := p.topic(topicID)
	select {
	case t.ch <- m:
	default:
		return "", unavailable("memory "+topicID, errBufferFull)
	}
	t.msgs = append(t.msgs, m)
	return m.ID, nil
}

// Messages returns a copy of everything published to topicID.
func (p *MemoryPublisher) Messages(topicID string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[topicID]
	if !ok {
		return nil
	}
	return append([]Message(nil), t.msgs...)
}

// Deliveries returns the topic's delivery channel. It is closed by Close.
func (p *MemoryPublisher) Deliveries(topicID string) <-chan Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.topics[topicID]; !ok && p.closed {
		ch := make(chan Message)
		close(ch)
		return ch
	}
	return p.topic(topicID).ch
}

func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.topics {
		close(t.ch)
	}
	return nil
}
