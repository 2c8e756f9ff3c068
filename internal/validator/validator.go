package validator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/septivank/campus-water-monitor/tools/timeparser"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// ReadingData represents a raw sensor reading as received
type ReadingData struct {
	SensorID   string
	DistanceCm *float64
	Timestamp  string
}

// Validator handles reading validation with configurable parameters
type Validator struct {
	timestampToleranceMinutes int
}

// NewValidator creates a new validator. A tolerance of 0 accepts any timestamp.
func NewValidator(timestampToleranceMinutes int) *Validator {
	return &Validator{
		timestampToleranceMinutes: timestampToleranceMinutes,
	}
}

// ValidateReading validates a single reading and resolves its timestamp.
// A missing timestamp resolves to receivedAt.
func (v *Validator) ValidateReading(reading ReadingData, receivedAt time.Time) (time.Time, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if strings.TrimSpace(reading.SensorID) == "" {
		return time.Time{}, invalid("missing required field: sensorId")
	}

	if reading.DistanceCm == nil {
		return time.Time{}, invalid("missing required field: distanceCm")
	}

	distance := *reading.DistanceCm
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return time.Time{}, invalid("distanceCm must be a finite number")
	}
	if distance < 0 {
		return time.Time{}, invalid("distanceCm must be a positive number")
	}

	if reading.Timestamp == "" {
		return receivedAt, result
	}

	readingTime, err := timeparser.ParseReadingTimestamp(reading.Timestamp)
	if err != nil {
		return time.Time{}, invalid(fmt.Sprintf("invalid timestamp format: %v", err))
	}

	if v.timestampToleranceMinutes > 0 &&
		!timeparser.IsWithinTolerance(readingTime, receivedAt, time.Duration(v.timestampToleranceMinutes)*time.Minute) {
		return readingTime, invalid(fmt.Sprintf("timestamp outside tolerance window (±%d minutes)", v.timestampToleranceMinutes))
	}

	return readingTime, result
}

func invalid(reason string) ValidationResult {
	return ValidationResult{IsValid: false, Reason: reason}
}
