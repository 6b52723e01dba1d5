package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the queue payload for one generation job. The job itself
// lives in redis; the message only points at it.
type JobMessage struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	Retries   int    `json:"retries,omitempty"`
}

func DecodeJob(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, err
	}
	if m.JobID == "" {
		return m, errors.New("job message without job_id")
	}
	return m, nil
}

type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queues Queues
}

func NewPublisher(url, queue string) (*Publisher, error) {
	q := QueuesFor(queue)
	conn, ch, err := dial(url, q)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queues: q}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishJob(ctx context.Context, m JobMessage) error {
	return publish(ctx, p.ch, p.queues.Main, m, 0)
}

func publish(ctx context.Context, ch *amqp.Channel, queue string, m JobMessage, delay time.Duration) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		msg,
	)
}
