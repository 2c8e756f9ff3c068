package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/campus-water-monitor/internal/anomaly"
	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/mq"
	"github.com/septivank/campus-water-monitor/internal/tank"
	"github.com/septivank/campus-water-monitor/internal/validator"
	"go.uber.org/zap"
)

// ReadingInput is a raw distance reading as sent by a sensor
type ReadingInput struct {
	SensorID   string   `json:"sensorId"`
	BuildingID string   `json:"buildingId,omitempty"`
	DistanceCm *float64 `json:"distanceCm"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// ProcessedReading is the stored, derived form of a reading
type ProcessedReading struct {
	SensorID          string    `json:"sensorId"`
	DistanceCm        float64   `json:"distanceCm"`
	WaterLevelCm      float64   `json:"waterLevelCm"`
	WaterLevelPercent float64   `json:"waterLevelPercent"`
	VolumeLiters      *float64  `json:"volumeLiters"`
	Timestamp         time.Time `json:"timestamp"`
}

// IngestService converts distance readings into levels and raises leak alerts
type IngestService struct {
	store     IngestStore
	publisher EventPublisher
	detector  *anomaly.Detector
	validator *validator.Validator
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store IngestStore,
	publisher EventPublisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		store:     store,
		publisher: publisher,
		detector:  detector,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ProcessMessage handles a JSON encoded ReadingInput from the ingest queue
func (s *IngestService) ProcessMessage(ctx context.Context, body []byte) error {
	var in ReadingInput
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("%w: failed to unmarshal message: %v", ErrInvalidInput, err)
	}

	_, err := s.ProcessReading(ctx, in)
	return err
}

// ProcessReading validates, converts and stores one reading. The reading and
// any alert it raises are committed in a single transaction; the sensor row
// stays locked for its duration so readings of one sensor are serialized.
func (s *IngestService) ProcessReading(ctx context.Context, in ReadingInput) (*ProcessedReading, error) {
	receivedAt := s.now()
	logger := s.logger.With(zap.String("sensor_id", in.SensorID))

	readingTime, result := s.validator.ValidateReading(validator.ReadingData{
		SensorID:   in.SensorID,
		DistanceCm: in.DistanceCm,
		Timestamp:  in.Timestamp,
	}, receivedAt)
	if !result.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, result.Reason)
	}
	distance := *in.DistanceCm

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, storeError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	sensor, err := s.store.LockSensorTx(ctx, tx, in.SensorID)
	if err != nil {
		return nil, storeError("failed to load sensor", err)
	}
	if sensor == nil {
		return nil, fmt.Errorf("%w: sensor %s", ErrNotFound, in.SensorID)
	}
	if in.BuildingID != "" && in.BuildingID != sensor.BuildingID {
		logger.Warn("reading building does not match sensor building, using sensor building",
			zap.String("reading_building_id", in.BuildingID),
			zap.String("sensor_building_id", sensor.BuildingID),
		)
	}

	measurement, err := tank.Measure(distance, tank.Config{
		HeightCm:   sensor.TankHeightCm,
		DiameterCm: sensor.TankDiameterCm,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sensor %s: %v", ErrComputationUndefined, sensor.ID, err)
	}

	previous, err := s.store.GetLatestReadingTx(ctx, tx, sensor.ID)
	if err != nil {
		return nil, storeError("failed to load previous reading", err)
	}

	reading := &db.SensorReading{
		SensorID:          sensor.ID,
		DistanceCm:        distance,
		WaterLevelCm:      measurement.WaterLevelCm,
		WaterLevelPercent: measurement.WaterLevelPercent,
		VolumeLiters:      measurement.VolumeLiters,
		Timestamp:         readingTime,
	}
	if err := s.store.InsertReadingTx(ctx, tx, reading); err != nil {
		return nil, storeError("failed to insert reading", err)
	}

	alert := s.checkForLeak(sensor, previous, reading, receivedAt, logger)
	if alert != nil {
		if err := s.store.InsertAlertTx(ctx, tx, alert); err != nil {
			return nil, storeError("failed to insert alert", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("failed to commit transaction", err)
	}

	s.publish(ctx, sensor, reading, alert, logger)

	logger.Info("reading processed",
		zap.Int64("reading_id", reading.ID),
		zap.Float64("water_level_percent", reading.WaterLevelPercent),
		zap.Bool("alert_raised", alert != nil),
	)

	return &ProcessedReading{
		SensorID:          reading.SensorID,
		DistanceCm:        reading.DistanceCm,
		WaterLevelCm:      reading.WaterLevelCm,
		WaterLevelPercent: reading.WaterLevelPercent,
		VolumeLiters:      reading.VolumeLiters,
		Timestamp:         reading.Timestamp,
	}, nil
}

// checkForLeak compares a reading with the one stored before it.
// The first reading of a sensor never alerts.
func (s *IngestService) checkForLeak(
	sensor *db.Sensor,
	previous *db.SensorReading,
	current *db.SensorReading,
	detectedAt time.Time,
	logger *zap.Logger,
) *db.Alert {
	if previous == nil {
		return nil
	}

	elapsed := current.Timestamp.Sub(previous.Timestamp)
	if elapsed <= 0 {
		logger.Debug("skipping leak check, reading is not newer than the previous one",
			zap.Time("previous_timestamp", previous.Timestamp),
			zap.Time("timestamp", current.Timestamp),
		)
		return nil
	}

	finding, ok := s.detector.Evaluate(previous.WaterLevelPercent, current.WaterLevelPercent, elapsed)
	if !ok {
		return nil
	}

	logger.Warn("water level drop detected",
		zap.String("severity", string(finding.Severity)),
		zap.Float64("drop_rate_per_hour", finding.DropRatePerHour),
	)

	return &db.Alert{
		ID:         s.newID(),
		Status:     alertStatus(finding.Severity),
		BuildingID: sensor.BuildingID,
		SensorID:   sensor.ID,
		Issue:      finding.Issue(),
		DetectedAt: detectedAt,
	}
}

// alertStatus is the stored status of an alert raised with severity
func alertStatus(severity anomaly.Severity) string {
	if severity == anomaly.SeverityCritical {
		return db.AlertStatusCritical
	}
	return db.AlertStatusWarning
}

// publish announces committed state. Failures are logged, the data is already stored.
func (s *IngestService) publish(ctx context.Context, sensor *db.Sensor, reading *db.SensorReading, alert *db.Alert, logger *zap.Logger) {
	err := s.publisher.PublishReadingProcessed(ctx, mq.ReadingProcessedEvent{
		SensorID:          reading.SensorID,
		BuildingID:        sensor.BuildingID,
		DistanceCm:        reading.DistanceCm,
		WaterLevelCm:      reading.WaterLevelCm,
		WaterLevelPercent: reading.WaterLevelPercent,
		VolumeLiters:      reading.VolumeLiters,
		Timestamp:         reading.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("failed to publish reading event", zap.Error(err))
	}

	if alert == nil {
		return
	}

	err = s.publisher.PublishAlertRaised(ctx, mq.AlertRaisedEvent{
		AlertID:    alert.ID,
		Status:     alert.Status,
		BuildingID: alert.BuildingID,
		SensorID:   alert.SensorID,
		Issue:      alert.Issue,
		DetectedAt: alert.DetectedAt.Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("failed to publish alert event", zap.Error(err), zap.String("alert_id", alert.ID))
	}
}
