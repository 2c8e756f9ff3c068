package tank

import (
	"errors"
	"fmt"
	"math"
)

// ErrUndefined is returned when a tank configuration makes the level math undefined.
var ErrUndefined = errors.New("tank computation undefined")

// Config describes the cylindrical tank a sensor is mounted on
type Config struct {
	HeightCm   float64
	DiameterCm *float64
}

// Measurement is the derived state of a tank for one distance reading
type Measurement struct {
	WaterLevelCm      float64
	WaterLevelPercent float64
	VolumeLiters      *float64
}

// Validate checks that the configuration can be used for level math
func (c Config) Validate() error {
	if !(c.HeightCm > 0) || math.IsInf(c.HeightCm, 0) {
		return fmt.Errorf("%w: tank height must be positive, got %v", ErrUndefined, c.HeightCm)
	}
	if c.DiameterCm != nil && (!(*c.DiameterCm > 0) || math.IsInf(*c.DiameterCm, 0)) {
		return fmt.Errorf("%w: tank diameter must be positive, got %v", ErrUndefined, *c.DiameterCm)
	}
	return nil
}

// WaterLevel converts a sensor-to-surface distance into water depth
func WaterLevel(distanceCm, tankHeightCm float64) float64 {
	return math.Max(0, tankHeightCm-distanceCm)
}

// LevelPercent returns the fill percentage clamped to [0, 100].
// tankHeightCm must be positive.
func LevelPercent(waterLevelCm, tankHeightCm float64) float64 {
	return math.Min(100, math.Max(0, waterLevelCm/tankHeightCm*100))
}

// Volume returns the water volume of a cylindrical tank in liters, rounded to 0.1
func Volume(waterLevelCm, diameterCm float64) float64 {
	radius := diameterCm / 2
	cm3 := math.Pi * radius * radius * waterLevelCm
	return math.Round(cm3/1000*10) / 10
}

// Measure runs the full distance -> level -> percent -> volume pipeline
func Measure(distanceCm float64, cfg Config) (Measurement, error) {
	if err := cfg.Validate(); err != nil {
		return Measurement{}, err
	}
	if math.IsNaN(distanceCm) || math.IsInf(distanceCm, 0) {
		return Measurement{}, fmt.Errorf("%w: distance must be finite", ErrUndefined)
	}

	level := WaterLevel(distanceCm, cfg.HeightCm)
	m := Measurement{
		WaterLevelCm:      level,
		WaterLevelPercent: LevelPercent(level, cfg.HeightCm),
	}
	if cfg.DiameterCm != nil {
		v := Volume(level, *cfg.DiameterCm)
		m.VolumeLiters = &v
	}
	return m, nil
}
