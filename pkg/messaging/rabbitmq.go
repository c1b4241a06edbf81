package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/vanityline/vanityline/pkg/logger"
)

type RabbitMQ struct {
	mu        sync.RWMutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	url       string
	topology  func(*RabbitMQ) error
	consumers []ConsumerRegistration
	stopCh    chan struct{}
	closeOnce sync.Once
}

type ConsumerRegistration struct {
	QueueName    string
	ConsumerName string
	Handler      func([]byte) error
	Context      context.Context
}

// NewRabbitMQ dials url and declares topology. The same topology is replayed after a reconnect.
func NewRabbitMQ(url string, topology func(*RabbitMQ) error) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Info("Connected to RabbitMQ")

	r := &RabbitMQ{
		conn:     conn,
		channel:  ch,
		url:      url,
		topology: topology,
		stopCh:   make(chan struct{}),
	}

	if topology != nil {
		if err := topology(r); err != nil {
			r.Close()
			return nil, err
		}
	}

	go r.monitorConnection()

	return r, nil
}

func (r *RabbitMQ) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()

		if err := r.channel.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close channel: %w", err)
			return
		}
		if err := r.conn.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close connection: %w", err)
		}
	})
	return closeErr
}

func (r *RabbitMQ) DeclareExchange(name, kind string, durable, autoDelete bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel.ExchangeDeclare(name, kind, durable, autoDelete, false, false, nil)
}

func (r *RabbitMQ) DeclareQueue(name string, durable, autoDelete, exclusive bool, args amqp.Table) (amqp.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel.QueueDeclare(name, durable, autoDelete, exclusive, false, args)
}

func (r *RabbitMQ) BindQueue(queueName, routingKey, exchangeName string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel.QueueBind(queueName, routingKey, exchangeName, false, nil)
}

func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	err = r.channel.Publish(exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
	}
	return nil
}

// PublishEvent wraps data in a Message envelope and publishes it to a topic exchange.
func (r *RabbitMQ) PublishEvent(ctx context.Context, exchange, eventType string, data interface{}) error {
	return r.Publish(ctx, exchange, eventType, NewMessage(eventType, data))
}

func (r *RabbitMQ) Consume(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error {
	r.mu.Lock()
	r.consumers = append(r.consumers, ConsumerRegistration{
		QueueName:    queueName,
		ConsumerName: consumerName,
		Handler:      handler,
		Context:      ctx,
	})
	r.mu.Unlock()

	return r.startConsumer(ctx, queueName, consumerName, handler)
}

func (r *RabbitMQ) startConsumer(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error {
	r.mu.RLock()
	msgs, err := r.channel.Consume(queueName, consumerName, false, false, false, false, nil)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping consumer", logger.F("queue", queueName))
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("Consumer channel closed", logger.F("queue", queueName))
					return
				}
				dispatch(queueName, msg, handler)
			}
		}
	}()

	logger.Info("Started consuming messages", logger.F("queue", queueName))
	return nil
}

// dispatch acks on success. Failed deliveries are rejected without requeue so they land in
// the queue's dead-letter exchange instead of looping.
func dispatch(queueName string, msg amqp.Delivery, handler func([]byte) error) {
	if err := handler(msg.Body); err != nil {
		logger.Error("Failed to process message", logger.F("queue", queueName), logger.Err(err))
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

func (r *RabbitMQ) SetQos(prefetchCount int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel.Qos(prefetchCount, 0, false)
}

func (r *RabbitMQ) reconnect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to reopen channel: %w", err)
	}

	r.mu.Lock()
	if r.conn != nil && !r.conn.IsClosed() {
		r.conn.Close()
	}
	r.conn = conn
	r.channel = ch
	consumers := append([]ConsumerRegistration(nil), r.consumers...)
	r.mu.Unlock()

	logger.Info("Reconnected to RabbitMQ")

	if r.topology != nil {
		if err := r.topology(r); err != nil {
			logger.Error("Failed to setup topology after reconnect", logger.Err(err))
		}
	}

	for _, consumer := range consumers {
		if consumer.Context.Err() != nil {
			continue
		}
		if err := r.startConsumer(consumer.Context, consumer.QueueName, consumer.ConsumerName, consumer.Handler); err != nil {
			logger.Error("Failed to restart consumer after reconnect",
				logger.F("queue", consumer.QueueName), logger.Err(err))
		}
	}

	return nil
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) monitorConnection() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if !r.isClosed() {
				continue
			}
			logger.Warn("RabbitMQ connection lost, attempting to reconnect")
			for i := 0; i < 5; i++ {
				err := r.reconnect()
				if err == nil {
					break
				}
				logger.Error("Failed to reconnect to RabbitMQ", logger.F("attempt", i+1), logger.Err(err))
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
	}
}

type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      json.RawMessage        `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewMessage(msgType string, data interface{}) *Message {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
		Metadata:  make(map[string]interface{}),
	}
}

// DecodeMessage parses an envelope and unmarshals its payload into dest.
func DecodeMessage(body []byte, dest interface{}) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if dest != nil && len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, dest); err != nil {
			return &msg, fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
		}
	}
	return &msg, nil
}
