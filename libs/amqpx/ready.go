package amqpx

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func ReadyCheck(url string) func(context.Context) error {
	if url == "" {
		url = DefaultURL
	}
	return func(_ context.Context) error {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial: amqp.DefaultDial(2 * time.Second),
		})
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
