package service

import (
	"context"
	"fmt"
	"time"

	"github.com/septivank/campus-water-monitor/internal/db"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

// SensorStatus is a sensor with its latest reading
type SensorStatus struct {
	SensorID          string     `json:"sensorId"`
	BuildingID        string     `json:"buildingId"`
	LocationLabel     string     `json:"locationLabel"`
	WaterLevelPercent *float64   `json:"waterLevelPercent"`
	VolumeLiters      *float64   `json:"volumeLiters"`
	LastReadingAt     *time.Time `json:"lastReadingAt"`
	IsOnline          bool       `json:"isOnline"`
}

// SensorService answers sensor status and history queries
type SensorService struct {
	store        SensorStore
	onlineWindow time.Duration
	now          func() time.Time
}

// NewSensorService creates a new sensor service. A sensor is online when its
// latest reading is younger than onlineWindow.
func NewSensorService(store SensorStore, onlineWindow time.Duration) *SensorService {
	return &SensorService{
		store:        store,
		onlineWindow: onlineWindow,
		now:          time.Now,
	}
}

// AllStatus returns the status of every sensor
func (s *SensorService) AllStatus(ctx context.Context) ([]SensorStatus, error) {
	rows, err := s.store.GetAllSensorStatus(ctx)
	if err != nil {
		return nil, storeError("failed to load sensor status", err)
	}

	now := s.now()
	out := make([]SensorStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toStatus(row, now))
	}
	return out, nil
}

// Status returns the status of one sensor
func (s *SensorService) Status(ctx context.Context, sensorID string) (*SensorStatus, error) {
	row, err := s.store.GetSensorStatus(ctx, sensorID)
	if err != nil {
		return nil, storeError("failed to load sensor status", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: sensor %s", ErrNotFound, sensorID)
	}

	status := s.toStatus(*row, s.now())
	return &status, nil
}

// Readings returns a sensor's latest readings, newest first. limit 0 means the default.
func (s *SensorService) Readings(ctx context.Context, sensorID string, limit int) ([]ProcessedReading, error) {
	if limit == 0 {
		limit = defaultReadingsLimit
	}
	if limit < 0 || limit > maxReadingsLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxReadingsLimit)
	}

	sensor, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, storeError("failed to load sensor", err)
	}
	if sensor == nil {
		return nil, fmt.Errorf("%w: sensor %s", ErrNotFound, sensorID)
	}

	rows, err := s.store.GetSensorReadings(ctx, sensorID, limit)
	if err != nil {
		return nil, storeError("failed to load readings", err)
	}

	out := make([]ProcessedReading, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProcessedReading{
			SensorID:          r.SensorID,
			DistanceCm:        r.DistanceCm,
			WaterLevelCm:      r.WaterLevelCm,
			WaterLevelPercent: r.WaterLevelPercent,
			VolumeLiters:      r.VolumeLiters,
			Timestamp:         r.Timestamp,
		})
	}
	return out, nil
}

func (s *SensorService) toStatus(row db.SensorStatus, now time.Time) SensorStatus {
	return SensorStatus{
		SensorID:          row.SensorID,
		BuildingID:        row.BuildingID,
		LocationLabel:     row.LocationLabel,
		WaterLevelPercent: row.WaterLevelPercent,
		VolumeLiters:      row.VolumeLiters,
		LastReadingAt:     row.LastReadingAt,
		IsOnline:          row.LastReadingAt != nil && now.Sub(*row.LastReadingAt) < s.onlineWindow,
	}
}
