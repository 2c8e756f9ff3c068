package anomaly

import (
	"fmt"
	"math"
	"time"
)

// Severity is the alert level raised for a water level drop
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Finding describes a drop in water level that crossed a threshold
type Finding struct {
	Severity        Severity
	LevelDrop       float64
	DropRatePerHour float64
	ElapsedMinutes  float64
}

// Issue renders the human-readable alert message
func (f Finding) Issue() string {
	if f.Severity == SeverityCritical {
		return fmt.Sprintf("Critical: Water level dropped %.1f%% in %d minutes - possible leak",
			f.LevelDrop, int64(math.Round(f.ElapsedMinutes)))
	}
	return fmt.Sprintf("Warning: Unusual water level drop of %.1f%% detected", f.LevelDrop)
}

// Detector handles leak detection with configurable drop-rate thresholds
type Detector struct {
	criticalRatePerHour float64
	warningRatePerHour  float64
}

// NewDetector creates a new detector. Rates are in percent per hour.
func NewDetector(criticalRatePerHour, warningRatePerHour float64) *Detector {
	return &Detector{
		criticalRatePerHour: criticalRatePerHour,
		warningRatePerHour:  warningRatePerHour,
	}
}

// Evaluate compares the current fill percentage with the previous one.
// Non-positive elapsed time skips the check.
func (d *Detector) Evaluate(previousPercent, currentPercent float64, elapsed time.Duration) (Finding, bool) {
	if elapsed <= 0 {
		return Finding{}, false
	}
	if !isFinite(previousPercent) || !isFinite(currentPercent) {
		return Finding{}, false
	}

	minutes := elapsed.Minutes()
	drop := previousPercent - currentPercent
	rate := drop / (minutes / 60)
	if !isFinite(rate) {
		return Finding{}, false
	}

	finding := Finding{
		LevelDrop:       drop,
		DropRatePerHour: rate,
		ElapsedMinutes:  minutes,
	}

	switch {
	case rate > d.criticalRatePerHour:
		finding.Severity = SeverityCritical
	case rate > d.warningRatePerHour:
		finding.Severity = SeverityWarning
	default:
		return Finding{}, false
	}

	return finding, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
