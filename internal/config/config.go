package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/septivank/campus-water-monitor/internal/campus"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	CORSOrigin  string
	Location    *time.Location
	Buildings   campus.Catalog
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
	Sensors     SensorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	AutoMigrate bool
}

// RabbitMQConfig holds RabbitMQ connection, exchange and queue settings.
// An empty URL disables messaging.
type RabbitMQConfig struct {
	URL               string
	EventsExchange    string
	ReadingRoutingKey string
	AlertRoutingKey   string
	IngestExchange    string
	IngestQueue       string
	IngestRoutingKey  string
	DLQQueue          string
	PrefetchCount     int
}

// Enabled reports whether a broker is configured
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	TimestampToleranceMinutes int
}

// AnomalyConfig holds leak detection thresholds in percent per hour
type AnomalyConfig struct {
	CriticalDropRate float64
	WarningDropRate  float64
}

// SensorConfig holds sensor related settings
type SensorConfig struct {
	OnlineWindow      time.Duration
	DefaultSensorID   string
	DefaultBuildingID string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "campus-water-monitor"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 3001),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),
		Buildings:   campus.DefaultCatalog(),
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvAsInt("DATABASE_MAX_CONNS", 0),
			AutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "water-monitor.events.exchange"),
			ReadingRoutingKey: getEnv("RABBITMQ_READING_ROUTING_KEY", "sensor.reading.processed"),
			AlertRoutingKey:   getEnv("RABBITMQ_ALERT_ROUTING_KEY", "sensor.alert.raised"),
			IngestExchange:    getEnv("RABBITMQ_INGEST_EXCHANGE", "water-monitor.ingest.exchange"),
			IngestQueue:       getEnv("RABBITMQ_INGEST_QUEUE", "water-monitor.ingest.queue"),
			IngestRoutingKey:  getEnv("RABBITMQ_INGEST_ROUTING_KEY", "sensor.reading.raw"),
			DLQQueue:          getEnv("RABBITMQ_DLQ_QUEUE", "water-monitor.ingest.dlq"),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Validation: ValidationConfig{
			TimestampToleranceMinutes: getEnvAsInt("VALIDATION_TIMESTAMP_TOLERANCE_MINUTES", 10080),
		},
		Anomaly: AnomalyConfig{
			CriticalDropRate: getEnvAsFloat("ANOMALY_CRITICAL_DROP_RATE", 20),
			WarningDropRate:  getEnvAsFloat("ANOMALY_WARNING_DROP_RATE", 10),
		},
		Sensors: SensorConfig{
			OnlineWindow:      time.Duration(getEnvAsInt("SENSOR_ONLINE_WINDOW_MINUTES", 5)) * time.Minute,
			DefaultSensorID:   getEnv("DEFAULT_SENSOR_ID", "S001"),
			DefaultBuildingID: getEnv("DEFAULT_BUILDING_ID", "hostel_a"),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if raw := os.Getenv("BUILDINGS"); raw != "" {
		catalog, err := campus.ParseCatalog(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BUILDINGS: %w", err)
		}
		cfg.Buildings = catalog
	}

	if cfg.Anomaly.WarningDropRate <= 0 || cfg.Anomaly.CriticalDropRate <= cfg.Anomaly.WarningDropRate {
		return nil, fmt.Errorf("anomaly thresholds must satisfy 0 < warning (%v) < critical (%v)",
			cfg.Anomaly.WarningDropRate, cfg.Anomaly.CriticalDropRate)
	}

	if cfg.Database.MaxConns < 0 {
		return nil, fmt.Errorf("DATABASE_MAX_CONNS must not be negative")
	}

	if cfg.Validation.TimestampToleranceMinutes < 0 {
		return nil, fmt.Errorf("VALIDATION_TIMESTAMP_TOLERANCE_MINUTES must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
