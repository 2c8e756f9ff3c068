package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ReadingProcessedEvent is published after a reading has been stored
type ReadingProcessedEvent struct {
	SensorID          string   `json:"sensor_id"`
	BuildingID        string   `json:"building_id"`
	DistanceCm        float64  `json:"distance_cm"`
	WaterLevelCm      float64  `json:"water_level_cm"`
	WaterLevelPercent float64  `json:"water_level_percent"`
	VolumeLiters      *float64 `json:"volume_liters"`
	Timestamp         string   `json:"timestamp"`
}

// AlertRaisedEvent is published after a leak or unusual usage alert has been stored
type AlertRaisedEvent struct {
	AlertID    string `json:"alert_id"`
	Status     string `json:"status"`
	BuildingID string `json:"building_id"`
	SensorID   string `json:"sensor_id"`
	Issue      string `json:"issue"`
	DetectedAt string `json:"detected_at"`
}

// PublisherConfig holds the exchange and routing keys for domain events
type PublisherConfig struct {
	Exchange          string
	ReadingRoutingKey string
	AlertRoutingKey   string
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn    *Connection
	channel *amqp.Channel
	cfg     PublisherConfig
	logger  *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// PublishReadingProcessed publishes a processed reading event
func (p *Publisher) PublishReadingProcessed(ctx context.Context, event ReadingProcessedEvent) error {
	return p.publish(ctx, p.cfg.ReadingRoutingKey, event)
}

// PublishAlertRaised publishes an alert event
func (p *Publisher) PublishAlertRaised(ctx context.Context, event AlertRaisedEvent) error {
	return p.publish(ctx, p.cfg.AlertRoutingKey, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event",
		zap.String("exchange", p.cfg.Exchange),
		zap.String("routing_key", routingKey),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NopPublisher drops events. It is used when no broker is configured.
type NopPublisher struct{}

// PublishReadingProcessed implements the event publisher contract
func (NopPublisher) PublishReadingProcessed(context.Context, ReadingProcessedEvent) error { return nil }

// PublishAlertRaised implements the event publisher contract
func (NopPublisher) PublishAlertRaised(context.Context, AlertRaisedEvent) error { return nil }
