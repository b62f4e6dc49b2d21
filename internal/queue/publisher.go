package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher announces screening events. Callers treat failures as non-fatal:
// the request that produced the event has already been committed.
type Publisher interface {
	ScreeningAssigned(ctx context.Context, ev ScreeningAssignedEvent) error
	ScreeningReviewed(ctx context.Context, ev ScreeningReviewedEvent) error
}

// AMQPPublisher publishes persistent JSON messages to the default exchange,
// routed by queue name. It opens a connection per message.
type AMQPPublisher struct {
	url string
	log zerolog.Logger
}

func NewAMQPPublisher(url string, log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log.With().Str("component", "publisher").Logger()}
}

func (p *AMQPPublisher) ScreeningAssigned(ctx context.Context, ev ScreeningAssignedEvent) error {
	return p.publish(ctx, ScreeningAssignedQueue, ev)
}

func (p *AMQPPublisher) ScreeningReviewed(ctx context.Context, ev ScreeningReviewedEvent) error {
	return p.publish(ctx, ScreeningReviewedQueue, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, queue); err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("queue declare failed")
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("publish failed")
		return err
	}
	return nil
}

// declare makes sure queue exists; declaring is idempotent.
func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}
