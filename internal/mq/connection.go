package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const heartbeat = 10 * time.Second

// Connection is a named RabbitMQ connection shared by the publisher and the ingest consumer
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials RabbitMQ as clientName and closes the connection on shutdown.
// A broker side close is logged; channels opened on it stop working.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url, clientName string) (*Connection, error) {
	logger.Info("attempting to connect to RabbitMQ...", zap.String("client_name", clientName))

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(clientName)

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	})
	if err != nil {
		logger.Error("rabbitmq connection failed", zap.Error(err))
		return nil, fmt.Errorf("[RABBITMQ CONNECTION FAILED] cannot connect to RabbitMQ. Please check: 1) RabbitMQ is running, 2) RABBITMQ_URL is correct, 3) Credentials are valid. Error: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			logger.Error("rabbitmq connection lost",
				zap.Int("code", amqpErr.Code),
				zap.String("reason", amqpErr.Reason),
			)
		}
	}()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("rabbitmq connection established successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if conn.IsClosed() {
				return nil
			}
			if err := conn.Close(); err != nil {
				logger.Error("failed to close rabbitmq connection", zap.Error(err))
				return err
			}
			logger.Info("rabbitmq connection closed")
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the connection
func (c *Connection) Channel() (*amqp.Channel, error) {
	if c.conn.IsClosed() {
		return nil, amqp.ErrClosed
	}
	return c.conn.Channel()
}
