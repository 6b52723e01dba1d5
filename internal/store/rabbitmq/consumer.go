package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads job messages from the main queue with manual acks.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queues   Queues
	prefetch int
}

func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	q := QueuesFor(queue)
	conn, ch, err := dial(url, q)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queues: q, prefetch: prefetch}, nil
}

func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queues.Main, "", false, false, false, false, nil)
}

// Retry re-enqueues m on the retry queue with a delay and acks the original
// delivery.
func (c *Consumer) Retry(ctx context.Context, d amqp.Delivery, m JobMessage, delay time.Duration) error {
	m.Retries++
	if err := publish(ctx, c.ch, c.queues.Retry, m, delay); err != nil {
		return err
	}
	return d.Ack(false)
}

// Closed reports the connection going away.
func (c *Consumer) Closed() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
