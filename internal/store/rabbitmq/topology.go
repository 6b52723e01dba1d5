package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queues of one job pipeline: jobs are consumed from Main, rejected jobs
// land in DLQ, and Retry holds delayed jobs until their TTL sends them back
// to Main.
type Queues struct {
	Main  string
	Retry string
	DLQ   string
}

func QueuesFor(queue string) Queues {
	return Queues{Main: queue, Retry: queue + ".retry", DLQ: queue + ".dlq"}
}

func (q Queues) args() map[string]amqp.Table {
	return map[string]amqp.Table{
		q.DLQ: nil,
		q.Retry: {
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.Main,
		},
		q.Main: {
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.DLQ,
		},
	}
}

// declare creates the three durable queues; publisher and consumer both
// call it so either may start first.
func (q Queues) declare(ch *amqp.Channel) error {
	args := q.args()
	for _, name := range []string{q.DLQ, q.Retry, q.Main} {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false,
			args[name],
		); err != nil {
			return err
		}
	}
	return nil
}

func dial(url string, q Queues) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := q.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
