package amqpx

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange receives every domain event, routed by event-type key.
	Exchange = "todo.events"
	// DeadLetterExchange receives messages the consumer rejects without requeue.
	DeadLetterExchange = "todo.events.deadletter"
	// NotificationsQueue is the notifier consumer group's queue.
	NotificationsQueue = "todo.notifications"
	// DeadLetterQueue collects dead-lettered notifications for inspection.
	DeadLetterQueue = "todo.notifications.deadletter"
)

// DeclareExchanges declares the topic exchange and its dead-letter
// exchange. Declarations are idempotent; publisher and consumer both run
// this at startup.
func DeclareExchanges(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil)
}

// DeclareNotificationsQueue declares the consumer queue with its
// dead-letter wiring, the dead-letter queue itself, and one binding per
// routing key. Safe to repeat.
func DeclareNotificationsQueue(ch *amqp.Channel, routingKeys ...string) error {
	if _, err := ch.QueueDeclare(NotificationsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": NotificationsQueue,
	}); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DeadLetterQueue, NotificationsQueue, DeadLetterExchange, false, nil); err != nil {
		return err
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(NotificationsQueue, key, Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}
