package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/worker"
	"github.com/easel-cloud/easel/pkg/log"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler runs one attempt at a job and reports the tagged outcome.
type Handler func(ctx context.Context, jobID uuid.UUID) worker.Result

// Finalizer durably marks a job failed once its retry budget is
// exhausted. Attempt failures before that stay advisory so the job
// remains retryable.
type Finalizer func(ctx context.Context, jobID uuid.UUID, jobErr *worker.JobError)

// Consumer dequeues generation job ids and drives the worker pool.
// Delivery is at-least-once with broker-enforced exclusivity per
// message; a failed attempt is republished with an incremented
// attempt header after a backoff delay, up to MaxAttempts total.
type Consumer struct {
	channel   *amqp.Channel
	queue     string
	handler   Handler
	finalizer Finalizer
	pool      *worker.Pool

	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

type ConsumerConfig struct {
	Exchange    string
	Queue       string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, pool *worker.Pool, handler Handler, finalizer Finalizer) (*Consumer, error) {
	if handler == nil {
		panic("queue consumer requires a handler")
	}
	if finalizer == nil {
		panic("queue consumer requires a finalizer")
	}
	if pool == nil {
		pool = worker.NewPool(1)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = 30 * time.Second
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := declareTopology(ch, cfg.Exchange, cfg.Queue); err != nil {
		return nil, err
	}

	// One unacked delivery per in-flight pool slot.
	if err := ch.Qos(pool.Size(), 0, false); err != nil {
		return nil, err
	}

	return &Consumer{
		channel:     ch,
		queue:       cfg.Queue,
		handler:     handler,
		finalizer:   finalizer,
		pool:        pool,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}, nil
}

// Start consumes until the context is cancelled, waiting for
// in-flight jobs to drain before returning.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.pool.Wait()
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				log.Warn("generation queue channel closed")
				c.pool.Wait()
				return nil
			}

			if err := c.pool.Submit(ctx, func() {
				c.process(ctx, delivery)
			}); err != nil {
				// Context cancelled while waiting for a slot; the
				// unacked delivery returns to the queue.
				c.pool.Wait()
				return nil
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, delivery amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Error("dropping malformed queue message", "error", err)
		c.ack(delivery)
		return
	}

	attempt := attemptFrom(delivery.Headers)

	result := c.handler(ctx, msg.JobID)
	if !result.Failed() {
		c.ack(delivery)
		return
	}

	if attempt >= c.maxAttempts {
		log.Error("job exhausted retry budget",
			"job_id", msg.JobID,
			"attempt", attempt,
			"error", result.Err)
		c.finalizer(ctx, msg.JobID, result.Err)
		c.ack(delivery)
		return
	}

	delay := Backoff(attempt, c.backoffBase, c.backoffCap)
	log.Warn("job attempt failed; scheduling redelivery",
		"job_id", msg.JobID,
		"attempt", attempt,
		"delay", delay,
		"error", result.Err)

	if err := c.redeliver(ctx, delivery, msg, attempt+1, delay); err != nil {
		log.Error("failed to redeliver job; requeueing via broker",
			"job_id", msg.JobID,
			"error", err)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			log.Error("failed to nack delivery", "job_id", msg.JobID, "error", nackErr)
		}
		return
	}

	metrics.QueueRetriesTotal.WithLabelValues(strconv.Itoa(attempt + 1)).Inc()
	c.ack(delivery)
}

// redeliver waits out the backoff then republishes with an
// incremented attempt header. Retries re-run the whole worker
// sequence, including provider calls already made in the failed
// attempt; there is no idempotency key.
func (c *Consumer) redeliver(ctx context.Context, delivery amqp.Delivery, msg Message, attempt int, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	body, err := msg.Marshal()
	if err != nil {
		return err
	}

	return c.channel.PublishWithContext(ctx,
		delivery.Exchange,
		c.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers:      amqp.Table{attemptHeader: int32(attempt)},
		},
	)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		log.Error("failed to ack delivery", "error", err)
	}
}
