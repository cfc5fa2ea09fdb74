package amqpx

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceHeaders writes W3C trace context into message headers.
func InjectTraceHeaders(ctx context.Context, headers amqp.Table) {
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier{headers: headers})
}

// ExtractTraceContext returns a context extracted from delivery headers
// using the global propagator.
func ExtractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, tableCarrier{headers: headers})
}

type tableCarrier struct {
	headers amqp.Table
}

func (c tableCarrier) Get(key string) string {
	return HeaderString(c.headers, key)
}

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}

func (c tableCarrier) Set(key string, value string) {
	c.headers[key] = value
}

var _ propagation.TextMapCarrier = tableCarrier{}
