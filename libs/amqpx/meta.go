package amqpx

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// HeaderString reads a string header from an AMQP table. Some clients
// deliver string headers as byte slices, so both encodings are accepted.
func HeaderString(headers amqp.Table, key string) string {
	switch v := headers[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
