package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/stocksync/internal/model"
)

type fakeWriter struct {
	mu     sync.Mutex
	topic  string
	msgs   []segkafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...segkafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestKafkaPublisher(writeErr error) (*KafkaPublisher, *[]*fakeWriter) {
	var created []*fakeWriter
	p := &KafkaPublisher{
		prefix:  "stocksync.",
		writers: make(map[string]messageWriter),
	}
	p.newWriter = func(topic string) messageWriter {
		w := &fakeWriter{topic: topic, err: writeErr}
		created = append(created, w)
		return w
	}
	return p, &created
}

func header(m segkafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisherCachesWriterPerTopic(t *testing.T) {
	p, created := newTestKafkaPublisher(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := PublishCompanyBatch(ctx, p, "company-sync", []string{"AAA"})
		require.NoError(t, err)
	}
	_, err := p.Publish(ctx, "other", []byte(`{}`), nil)
	require.NoError(t, err)

	require.Len(t, *created, 2)
	assert.Equal(t, "stocksync.company-sync", (*created)[0].topic)
	assert.Len(t, (*created)[0].msgs, 3)

	require.NoError(t, p.Close())
	for _, w := range *created {
		assert.True(t, w.closed)
	}
}

func TestKafkaPublisherMessageShape(t *testing.T) {
	p, created := newTestKafkaPublisher(nil)

	id, err := PublishCompanyBatch(context.Background(), p, "company-sync", []string{"AAA", "BBB"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m := (*created)[0].msgs[0]
	assert.Equal(t, id, header(m, HeaderMessageID))
	assert.Equal(t, "sync_company_batch", header(m, AttrAction))

	var got model.DispatchMessage
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, model.ActionSyncCompanyBatch, got.Action)
	assert.Equal(t, []string{"AAA", "BBB"}, got.Symbols)
}

func TestKafkaPublisherWriteFailureIsUnavailable(t *testing.T) {
	p, _ := newTestKafkaPublisher(errors.New("leader not available"))

	_, err := p.Publish(context.Background(), "company-sync", []byte(`{}`), nil)
	require.ErrorIs(t, err, ErrBrokerUnavailable)
}

func TestKafkaPublisherClosed(t *testing.T) {
	p, _ := newTestKafkaPublisher(nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Publish(context.Background(), "company-sync", []byte(`{}`), nil)
	require.ErrorIs(t, err, ErrBrokerUnavailable)
}
