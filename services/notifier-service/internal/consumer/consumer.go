package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/todostream/todostream/libs/amqpx"
	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/services/notifier-service/internal/redelivery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier receives one call per consumed event kind. Implementations
// must tolerate repeated calls for the same logical event; delivery is
// at least once.
type Notifier interface {
	NotifyTodoCreated(ctx context.Context, id, title, description string, priority events.Priority, createdAt time.Time) error
	NotifyTodoCompleted(ctx context.Context, id, title string, completedAt time.Time) error
	NotifyTodoUpdated(ctx context.Context, id, title, changeDescription string) error
	NotifyTodoReopened(ctx context.Context, id, title string) error
	NotifyTodoPriorityChanged(ctx context.Context, id, title string, newPriority events.Priority) error
}

// Channel is the slice of amqp091.Channel the consumer needs.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Config struct {
	Queue    string
	Prefetch int
}

type handlerFunc func(ctx context.Context, ev events.Event) error

// Consumer runs the subscription loop over the notifications queue. Each
// delivery moves through deserialize -> dispatch -> ack, with malformed
// or unroutable messages dead-lettered (nack without requeue) and handler
// failures requeued while the redelivery guard permits.
type Consumer struct {
	ch       Channel
	logger   *slog.Logger
	guard    *redelivery.Guard
	cfg      Config
	handlers map[events.Type]handlerFunc

	wg sync.WaitGroup
}

func New(ch Channel, logger *slog.Logger, guard *redelivery.Guard, notifier Notifier, cfg Config) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = amqpx.NotificationsQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	return &Consumer{
		ch:       ch,
		logger:   logger,
		guard:    guard,
		cfg:      cfg,
		handlers: dispatchTable(notifier),
	}
}

// dispatchTable maps the closed event-type set to notifier calls. The
// consumer never switches on raw header strings past this point.
func dispatchTable(n Notifier) map[events.Type]handlerFunc {
	return map[events.Type]handlerFunc{
		events.TypeTodoCreated: func(ctx context.Context, ev events.Event) error {
			e := ev.(events.TodoCreated)
			return n.NotifyTodoCreated(ctx, e.TodoID, e.Title, e.Description, e.Priority, e.OccurredAt)
		},
		events.TypeTodoCompleted: func(ctx context.Context, ev events.Event) error {
			e := ev.(events.TodoCompleted)
			return n.NotifyTodoCompleted(ctx, e.TodoID, e.Title, e.CompletedAt)
		},
		events.TypeTodoUpdated: func(ctx context.Context, ev events.Event) error {
			e := ev.(events.TodoUpdated)
			title := e.NewValue
			if title == "" {
				title = "Updated"
			}
			change := fmt.Sprintf("Changed from '%s' to '%s'", e.OldValue, e.NewValue)
			return n.NotifyTodoUpdated(ctx, e.TodoID, title, change)
		},
		events.TypeTodoReopened: func(ctx context.Context, ev events.Event) error {
			e := ev.(events.TodoReopened)
			return n.NotifyTodoReopened(ctx, e.TodoID, e.Title)
		},
		events.TypeTodoPriorityChanged: func(ctx context.Context, ev events.Event) error {
			e := ev.(events.TodoPriorityChanged)
			return n.NotifyTodoPriorityChanged(ctx, e.TodoID, "Priority Updated", e.NewPriority)
		},
	}
}

// Run consumes until ctx is canceled or the delivery channel closes,
// then waits for in-flight handlers to drain. Handlers run concurrently;
// the broker holds at most cfg.Prefetch unacknowledged deliveries, which
// bounds the in-flight set.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	c.logger.Info("consumer started", "queue", c.cfg.Queue, "prefetch", c.cfg.Prefetch)
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer c.wg.Done()
				c.handleDelivery(ctx, d)
			}(d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	ctx = amqpx.ExtractTraceContext(ctx, d.Headers)
	ctx, span := otel.Tracer("amqp").Start(ctx, "amqp.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", c.cfg.Queue),
		),
	)
	defer span.End()

	eventType := amqpx.HeaderString(d.Headers, events.HeaderEventType)
	if eventType == "" {
		c.logger.Warn("dropping message without EventType header")
		c.nack(d, false)
		return
	}

	ev, err := events.Unmarshal(events.Type(eventType), d.Body)
	if errors.Is(err, events.ErrUnknownEventType) {
		c.logger.Warn("dropping message with unknown event type", "event_type", eventType)
		c.nack(d, false)
		return
	}
	if err != nil {
		c.logger.Error("dropping malformed event payload", "event_type", eventType, "err", err)
		span.RecordError(err)
		c.nack(d, false)
		return
	}

	correlationID := amqpx.HeaderString(d.Headers, events.HeaderCorrelationID)
	if err := c.handlers[ev.EventType()](ctx, ev); err != nil {
		requeue := c.guard.AllowRequeue(ctx, correlationID)
		c.logger.Error("handler failed",
			"event_type", eventType,
			"correlation_id", correlationID,
			"requeue", requeue,
			"err", err,
		)
		span.RecordError(err)
		c.nack(d, requeue)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "event_type", eventType, "err", err)
	}
}

func (c *Consumer) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		c.logger.Error("nack failed", "requeue", requeue, "err", err)
	}
}
