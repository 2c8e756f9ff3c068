package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, body []byte) error

// acknowledger is the part of amqp.Delivery the consumer settles messages with
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer feeds raw sensor readings from the ingest queue into a handler.
// Messages the handler rejects are dead-lettered. A retryable failure is
// requeued once; a second failure dead-letters it too.
type Consumer struct {
	channel       *amqp.Channel
	queue         string
	prefetchCount int
	logger        *zap.Logger
	handler       MessageHandler
	retryable     func(error) bool
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection    *Connection
	Queue         string
	DLQQueue      string
	Exchange      string
	RoutingKey    string
	PrefetchCount int
	Logger        *zap.Logger
	Handler       MessageHandler
	// Retryable reports failures worth one redelivery. Nil means none are.
	Retryable func(error) bool
}

// NewConsumer declares the ingest topology and creates a consumer
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareIngestTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:       ch,
		queue:         cfg.Queue,
		prefetchCount: cfg.PrefetchCount,
		logger:        cfg.Logger,
		handler:       cfg.Handler,
		retryable:     cfg.Retryable,
	}, nil
}

func declareIngestTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// DLQ first so the dead-letter route exists before the main queue uses it
	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Start starts consuming messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("message channel closed")
					return
				}
				c.dispatch(ctx, &msg, msg.Body, msg.RoutingKey, msg.Redelivered)
			}
		}
	}()

	return nil
}

func (c *Consumer) dispatch(ctx context.Context, msg acknowledger, body []byte, routingKey string, redelivered bool) {
	c.logger.Debug("received message from queue",
		zap.String("queue", c.queue),
		zap.String("routing_key", routingKey),
		zap.Int("body_size", len(body)),
		zap.Bool("redelivered", redelivered),
	)

	if err := c.handler(ctx, body); err != nil {
		requeue := !redelivered && c.retryable != nil && c.retryable(err)
		c.logger.Error("failed to process message",
			zap.Error(err),
			zap.String("routing_key", routingKey),
			zap.Bool("requeue", requeue),
		)

		// requeue=false routes the message to the DLQ
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			c.logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("failed to ACK message", zap.Error(ackErr))
	}
}

// Close closes the consumer channel
func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
