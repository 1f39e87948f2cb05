package queue

import (
	"context"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues generation job ids. Enqueue must only be called
// after the generation row is durably committed: a worker must always
// find a readable record when it dequeues.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	queue    string
}

func NewPublisher(conn *amqp.Connection, exchange, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := declareTopology(ch, exchange, queue); err != nil {
		return nil, err
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		queue:    queue,
	}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	body, err := Message{JobID: jobID}.Marshal()
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers:      amqp.Table{attemptHeader: int32(1)},
		},
	)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

func declareTopology(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"direct",
		true, // durable
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true, // durable
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	return ch.QueueBind(queue, queue, exchange, false, nil)
}
