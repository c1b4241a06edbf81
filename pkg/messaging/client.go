package messaging

import (
	"context"
)

// Publisher is what services depend on; tests substitute a mock.
type Publisher interface {
	PublishEvent(ctx context.Context, exchange, eventType string, data interface{}) error
}

type Subscriber interface {
	Consume(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error
}

type Broker interface {
	Publisher
	Subscriber
	Close() error
}

var _ Broker = (*RabbitMQ)(nil)

// NopPublisher drops every event. Used when RabbitMQ is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, interface{}) error { return nil }
