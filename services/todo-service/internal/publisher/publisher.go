package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/todostream/todostream/libs/amqpx"
	"github.com/todostream/todostream/libs/events"
)

const (
	maxRetries  = 3
	backoffUnit = 100 * time.Millisecond
)

// ErrPublishFailed marks a publish that exhausted its retry budget. The
// caller decides whether the surrounding operation still succeeds; the
// state change it follows is already persisted.
var ErrPublishFailed = errors.New("event publish failed")

// Channel is the slice of amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch     Channel
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(ch Channel, logger *slog.Logger) *Publisher {
	return &Publisher{
		ch:     ch,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Publish delivers one domain event to the topic exchange as a durable
// message. Transient failures are retried up to maxRetries times with
// exponential backoff (2^attempt * 100ms); the backoff blocks only this
// call. A nil return means the broker accepted the message for durable
// storage, not that a consumer processed it.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	eventType := ev.EventType()
	routingKey := events.RoutingKey(eventType)

	body, err := events.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", eventType, err)
	}

	headers := amqp.Table{
		events.HeaderEventType:     string(eventType),
		events.HeaderSource:        events.Source,
		events.HeaderVersion:       events.SchemaVersion,
		events.HeaderCorrelationID: uuid.NewString(),
	}
	amqpx.InjectTraceHeaders(ctx, headers)

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		err := p.ch.PublishWithContext(ctx, amqpx.Exchange, routingKey, false, false, msg)
		if err == nil {
			p.logger.Info("event published",
				"event_type", eventType,
				"routing_key", routingKey,
				"attempt", attempt,
			)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		lastErr = err
		p.logger.Warn("event publish attempt failed",
			"event_type", eventType,
			"attempt", attempt,
			"max_attempts", maxRetries+1,
			"err", err,
		)
		if attempt > maxRetries {
			break
		}
		if err := p.sleep(ctx, time.Duration(1<<attempt)*backoffUnit); err != nil {
			return err
		}
	}

	return fmt.Errorf("publish %s after %d attempts: %w", eventType, maxRetries+1, errors.Join(ErrPublishFailed, lastErr))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
