package service

import (
	"context"
	"time"

	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/mq"
	"github.com/septivank/campus-water-monitor/internal/repository"
)

// IngestStore is the persistence the ingestion path needs
type IngestStore interface {
	BeginTx(ctx context.Context) (repository.Tx, error)
	LockSensorTx(ctx context.Context, tx repository.Tx, sensorID string) (*db.Sensor, error)
	GetLatestReadingTx(ctx context.Context, tx repository.Tx, sensorID string) (*db.SensorReading, error)
	InsertReadingTx(ctx context.Context, tx repository.Tx, reading *db.SensorReading) error
	InsertAlertTx(ctx context.Context, tx repository.Tx, alert *db.Alert) error
}

// UsageStore is the persistence the read side needs
type UsageStore interface {
	GetBuildingReadings(ctx context.Context, buildingID string, from, to time.Time) ([]db.BuildingReading, error)
	GetActiveAlerts(ctx context.Context, limit int) ([]db.ActiveAlert, error)
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) (bool, error)
}

// SensorStore is the persistence sensor status queries need
type SensorStore interface {
	GetSensor(ctx context.Context, sensorID string) (*db.Sensor, error)
	GetAllSensorStatus(ctx context.Context) ([]db.SensorStatus, error)
	GetSensorStatus(ctx context.Context, sensorID string) (*db.SensorStatus, error)
	GetSensorReadings(ctx context.Context, sensorID string, limit int) ([]db.SensorReading, error)
}

// Store is everything the services persist. *repository.Repository implements it.
type Store interface {
	IngestStore
	UsageStore
	SensorStore
}

// EventPublisher announces stored readings and alerts
type EventPublisher interface {
	PublishReadingProcessed(ctx context.Context, event mq.ReadingProcessedEvent) error
	PublishAlertRaised(ctx context.Context, event mq.AlertRaisedEvent) error
}

var _ Store = (*repository.Repository)(nil)

var (
	_ EventPublisher = (*mq.Publisher)(nil)
	_ EventPublisher = mq.NopPublisher{}
)
