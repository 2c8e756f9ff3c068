package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/campus-water-monitor/internal/anomaly"
	"github.com/septivank/campus-water-monitor/internal/api"
	"github.com/septivank/campus-water-monitor/internal/config"
	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/mq"
	"github.com/septivank/campus-water-monitor/internal/repository"
	"github.com/septivank/campus-water-monitor/internal/service"
	"github.com/septivank/campus-water-monitor/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const readHeaderTimeout = 10 * time.Second

func startHTTPServer(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("[HTTP] failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening",
				zap.String("addr", srv.Addr),
				zap.String("cors_origin", cfg.CORSOrigin))

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

// startIngestConsumer feeds the ingest queue into the ingest service. It is a
// no-op when no broker is configured.
func startIngestConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	ingest *service.IngestService,
) error {
	if conn == nil {
		logger.Info("RABBITMQ_URL not set, ingest queue consumer disabled")
		return nil
	}

	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.IngestQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.IngestExchange,
		RoutingKey:    cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       ingest.ProcessMessage,
		Retryable: func(err error) bool {
			return errors.Is(err, service.ErrStoreUnavailable)
		},
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting ingest consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("ingest consumer stopped gracefully")
			return nil
		},
	})

	return nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, db.PoolConfig{
		URL:         cfg.Database.URL,
		MaxConns:    int32(cfg.Database.MaxConns),
		AutoMigrate: cfg.Database.AutoMigrate,
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new leak detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.CriticalDropRate, cfg.Anomaly.WarningDropRate)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.TimestampToleranceMinutes)
}

// ProvideMQConnection connects to RabbitMQ. It provides nil when messaging is disabled.
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled() {
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}

// ProvideEventPublisher creates the domain event publisher, or a no-op one without a broker
func ProvideEventPublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	if conn == nil {
		logger.Info("RABBITMQ_URL not set, domain events will not be published")
		return mq.NopPublisher{}, nil
	}

	publisher, err := mq.NewPublisher(conn, mq.PublisherConfig{
		Exchange:          cfg.RabbitMQ.EventsExchange,
		ReadingRoutingKey: cfg.RabbitMQ.ReadingRoutingKey,
		AlertRoutingKey:   cfg.RabbitMQ.AlertRoutingKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideIngestService creates a new ingest service instance
func ProvideIngestService(
	repo *repository.Repository,
	publisher service.EventPublisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	logger *zap.Logger,
) *service.IngestService {
	return service.NewIngestService(repo, publisher, detector, validator, logger)
}

// ProvideUsageService creates a new usage service instance
func ProvideUsageService(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) *service.UsageService {
	logger.Info("building catalog loaded", zap.Strings("buildings", cfg.Buildings.IDs()))
	return service.NewUsageService(repo, cfg.Buildings, cfg.Location, logger)
}

// ProvideSensorService creates a new sensor service instance
func ProvideSensorService(repo *repository.Repository, cfg *config.Config) *service.SensorService {
	return service.NewSensorService(repo, cfg.Sensors.OnlineWindow)
}

// ProvideRouter builds the HTTP API
func ProvideRouter(
	cfg *config.Config,
	logger *zap.Logger,
	ingest *service.IngestService,
	usage *service.UsageService,
	sensors *service.SensorService,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return api.NewRouter(cfg, logger, ingest, usage, sensors)
}
