package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/stocksync/internal/config"
)

func TestConfigForPrefixesTopic(t *testing.T) {
	c := ConfigFor(config.KafkaConfig{
		Brokers:        []string{"k1:9092"},
		TopicPrefix:    "stocksync.",
		GroupID:        "pusher",
		CommitInterval: 500,
	}, "company-sync")

	assert.Equal(t, "stocksync.company-sync", c.Topic)
	assert.Equal(t, "pusher", c.GroupID)
	assert.Equal(t, 500*time.Millisecond, c.CommitInterval)
}

func TestHeaderMap(t *testing.T) {
	assert.Nil(t, HeaderMap(nil))
	m := HeaderMap([]Header{
		{Key: "action", Value: []byte("sync_company_batch")},
		{Key: "message_id", Value: []byte("01J")},
	})
	assert.Equal(t, map[string]string{"action": "sync_company_batch", "message_id": "01J"}, m)
}

func TestNewWriterSettings(t *testing.T) {
	w := NewWriter([]string{"k1:9092"}, "stocksync.company-sync")
	defer w.Close()
	assert.Equal(t, "stocksync.company-sync", w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}
