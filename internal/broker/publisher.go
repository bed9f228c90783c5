package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/stocksync/internal/config"
	"github.com/jmehdipour/stocksync/internal/model"
)

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks -source=publisher.go Publisher

var ErrBrokerUnavailable = errors.New("broker unavailable")

// AttrAction is the message attribute carrying the command name.
const AttrAction = "action"

// Publisher sends one payload to a named topic and returns the broker-assigned
// message id. Implementations resolve each topic once and reuse the handle until
// Close. Publish does not retry.
type Publisher interface {
	Publish(ctx context.Context, topicID string, payload any, attrs map[string]string) (string, error)
	Close() error
}

// PublishCompanyBatch publishes one sync_company_batch dispatch message.
func PublishCompanyBatch(ctx context.Context, p Publisher, topicID string, symbols []string) (string, error) {
	msg := model.DispatchMessage{Action: model.ActionSyncCompanyBatch, Symbols: symbols}
	return p.Publish(ctx, topicID, msg, map[string]string{AttrAction: msg.Action.String()})
}

// New picks the backend named by broker.driver.
func New(cfg config.Config) (Publisher, error) {
	switch strings.ToLower(cfg.Broker.Driver) {
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka.brokers is empty")
		}
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix), nil
	case "rabbitmq":
		return NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueuePrefix)
	case "memory", "":
		return NewMemoryPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
	}
}

func encode(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return b, nil
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBrokerUnavailable, op, err)
}
