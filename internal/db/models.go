package db

import (
	"time"
)

// Alert statuses
const (
	AlertStatusCritical = "critical"
	AlertStatusWarning  = "warning"
	AlertStatusResolved = "resolved"
)

// Sensor represents an ultrasonic sensor mounted on a building tank
type Sensor struct {
	ID             string
	BuildingID     string
	LocationLabel  string
	TankHeightCm   float64
	TankDiameterCm *float64
}

// SensorReading represents a processed reading in the database
type SensorReading struct {
	ID                int64
	SensorID          string
	DistanceCm        float64
	WaterLevelCm      float64
	WaterLevelPercent float64
	VolumeLiters      *float64
	Timestamp         time.Time
}

// Alert represents a leak or unusual usage alert in the database
type Alert struct {
	ID         string
	Status     string
	BuildingID string
	SensorID   string
	Issue      string
	DetectedAt time.Time
	ResolvedAt *time.Time
}

// ActiveAlert is an alert joined with its sensor's location label
type ActiveAlert struct {
	Alert
	LocationLabel string
}

// SensorStatus is a sensor joined with its latest reading, if any
type SensorStatus struct {
	SensorID          string
	BuildingID        string
	LocationLabel     string
	WaterLevelPercent *float64
	VolumeLiters      *float64
	LastReadingAt     *time.Time
}

// BuildingReading is a reading with the fields needed for usage aggregation
type BuildingReading struct {
	SensorID     string
	VolumeLiters *float64
	Timestamp    time.Time
}
