package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer drains both screening queues and hands each message to Handler.
type Consumer struct {
	URL     string
	Handler *Handler
	Log     zerolog.Logger
}

// Run connects to the broker and consumes until ctx is cancelled. Broken
// connections are re-dialled with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("set QoS failed")
	}

	assigned, err := c.subscribe(ch, ScreeningAssignedQueue)
	if err != nil {
		return err
	}
	reviewed, err := c.subscribe(ch, ScreeningReviewedQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-assigned:
			if !ok {
				return errors.New("assigned deliveries closed")
			}
			c.settle(ctx, ScreeningAssignedQueue, d)
		case d, ok := <-reviewed:
			if !ok {
				return errors.New("reviewed deliveries closed")
			}
			c.settle(ctx, ScreeningReviewedQueue, d)
		}
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if err := declare(ch, queue); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

// settle acks handled messages and rejects failed ones without requeueing,
// so a poison message cannot spin the consumer.
func (c *Consumer) settle(ctx context.Context, queue string, d amqp.Delivery) {
	if err := c.Dispatch(ctx, queue, d.Body); err != nil {
		c.Log.Error().Err(err).Str("queue", queue).Msg("handle message failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Dispatch decodes body according to queue and runs the matching handler.
func (c *Consumer) Dispatch(ctx context.Context, queue string, body []byte) error {
	switch queue {
	case ScreeningAssignedQueue:
		var ev ScreeningAssignedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return c.Handler.HandleAssigned(ctx, ev)
	case ScreeningReviewedQueue:
		var ev ScreeningReviewedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return c.Handler.HandleReviewed(ctx, ev)
	}
	return fmt.Errorf("unknown queue %q", queue)
}
