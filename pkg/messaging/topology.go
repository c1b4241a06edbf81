package messaging

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/vanityline/vanityline/pkg/logger"
)

const (
	SubscriptionEventsExchange = "subscription.events"
	DeadLetterExchange         = "dead-letter"
	AdminAlertsQueue           = "subscription.admin-alerts"
)

// Binding ties a queue to an exchange with one routing key.
type Binding struct {
	Queue    string
	Exchange string
	Key      string
}

// AdminAlertBindings are the lifecycle events forwarded to the admin chat.
var AdminAlertBindings = []Binding{
	{AdminAlertsQueue, SubscriptionEventsExchange, "subscription.created"},
	{AdminAlertsQueue, SubscriptionEventsExchange, "subscription.cancelled"},
	{AdminAlertsQueue, SubscriptionEventsExchange, "subscription.expired"},
}

func DLQName(queueName string) string {
	return queueName + ".dlq"
}

func SetupSubscriptionTopology(r *RabbitMQ) error {
	if err := r.DeclareExchange(SubscriptionEventsExchange, "topic", true, false); err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", SubscriptionEventsExchange, err)
	}
	if err := r.DeclareExchange(DeadLetterExchange, "topic", true, false); err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", DeadLetterExchange, err)
	}

	if err := r.createDLQ(AdminAlertsQueue); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": AdminAlertsQueue,
	}
	if _, err := r.DeclareQueue(AdminAlertsQueue, true, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", AdminAlertsQueue, err)
	}

	for _, b := range AdminAlertBindings {
		if err := r.BindQueue(b.Queue, b.Key, b.Exchange); err != nil {
			return fmt.Errorf("failed to bind queue %s to exchange %s: %w", b.Queue, b.Exchange, err)
		}
	}

	logger.Info("Subscription topology setup completed")
	return nil
}

func (r *RabbitMQ) createDLQ(queueName string) error {
	dlqName := DLQName(queueName)

	_, err := r.DeclareQueue(dlqName, true, false, false, amqp.Table{
		"x-message-ttl": int32(86400000),
	})
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	return r.BindQueue(dlqName, queueName, DeadLetterExchange)
}
