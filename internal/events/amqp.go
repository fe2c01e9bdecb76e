// README: AMQP publisher; persistent deliveries, publisher confirms, backoff retries.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	durableAttempts = 5
	initialBackoff  = 200 * time.Millisecond
)

// AMQPPublisher publishes to a topic exchange. The channel must already be
// in confirm mode (see infra.NewRabbit).
type AMQPPublisher struct {
	exchange string
	log      *slog.Logger

	mu sync.Mutex // amqp channels are not safe for concurrent publish
	ch *amqp.Channel
}

func NewAMQPPublisher(ch *amqp.Channel, exchange string, log *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, log: log}
}

// PublishBestEffort tries once, retries once on failure, then gives up.
// A dropped sample is superseded by the next one within moments.
func (p *AMQPPublisher) PublishBestEffort(ctx context.Context, e Event) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if _, err = p.publish(ctx, e); err == nil {
			return nil
		}
	}
	p.log.Warn("best-effort event dropped", "topic", e.Topic, "error", err)
	return err
}

// PublishDurable waits for the broker confirm and retries with exponential
// backoff. It returns nil only once the broker has acked the message.
func (p *AMQPPublisher) PublishDurable(ctx context.Context, e Event) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < durableAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var conf *amqp.DeferredConfirmation
		conf, err = p.publish(ctx, e)
		if err != nil {
			continue
		}
		acked, werr := conf.WaitContext(ctx)
		if werr != nil {
			return werr
		}
		if acked {
			return nil
		}
		err = fmt.Errorf("broker nacked %s", e.Topic)
	}
	return fmt.Errorf("durable publish %s: %w", e.Topic, err)
}

func (p *AMQPPublisher) publish(ctx context.Context, e Event) (*amqp.DeferredConfirmation, error) {
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, e.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}
