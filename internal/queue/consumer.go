package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/config"
	"github.com/rajinder-mohan/yt2txt/internal/metrics"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// JobHandler processes one dequeued job. A returned error requeues the
// delivery once; redeliveries that fail again are dropped.
type JobHandler func(ctx context.Context, job *TranscribeJob) error

// Consumer pulls transcription jobs off the queue one at a time. Prefetch
// is pinned to 1 because each job holds an expensive external call.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	handler JobHandler
}

// NewConsumer connects to RabbitMQ and declares the job topology.
func NewConsumer(cfg *config.RabbitMQConfig, handler JobHandler) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		config:  cfg,
		handler: handler,
	}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.config.Queue, // queue
		"",             // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Log.Info("Consuming transcription jobs",
		zap.String("queue", c.config.Queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var job TranscribeJob
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		logger.Log.Error("dropping malformed job",
			zap.String("messageId", delivery.MessageId), zap.Error(err))
		metrics.JobsConsumed.WithLabelValues("malformed").Inc()
		_ = delivery.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &job); err != nil {
		// One requeue for transient failures; a redelivered job that
		// fails again is dropped so a poison message cannot loop.
		requeue := !delivery.Redelivered
		logger.Log.Error("job handling failed",
			zap.String("jobId", job.ID.String()),
			zap.String("videoId", job.VideoID),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		metrics.JobsConsumed.WithLabelValues("failed").Inc()
		_ = delivery.Nack(false, requeue)
		return
	}

	metrics.JobsConsumed.WithLabelValues("ok").Inc()
	_ = delivery.Ack(false)
}

// Close shuts down the channel and connection.
func (c *Consumer) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing consumer: %v", errs)
	}

	logger.Log.Info("RabbitMQ consumer closed")
	return nil
}
