// README: RabbitMQ connection and confirm-mode channel initialization.
package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NewRabbit dials the broker and opens a channel in publisher-confirm mode
// with the topic exchange declared. The caller owns both handles.
func NewRabbit(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp confirm mode: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return conn, ch, nil
}
