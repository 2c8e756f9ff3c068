// Package usage turns volume time series into consumption figures.
//
// Consumption is the sum of volume decreases between consecutive readings of
// the same sensor. Increases are refills and contribute nothing.
package usage

import (
	"math"
	"time"
)

// HoursPerDay is the number of hourly buckets in a Daily result
const HoursPerDay = 24

// Reading is the subset of a stored reading needed for aggregation
type Reading struct {
	SensorID     string
	Timestamp    time.Time
	VolumeLiters *float64
}

// Daily is the consumption of one building on one day
type Daily struct {
	TotalLitres   int64
	PeakUsageHour int
	// Hourly holds unrounded litres per hour of day.
	Hourly [HoursPerDay]float64
	// Total is the unrounded sum of all positive drops.
	Total float64
}

// HourlyRounded rounds each hourly bucket on its own. The sum of the rounded
// buckets can differ from TotalLitres.
func (d *Daily) HourlyRounded() [HoursPerDay]int64 {
	var out [HoursPerDay]int64
	for h, v := range d.Hourly {
		out[h] = int64(math.Round(v))
	}
	return out
}

// Aggregate computes consumption over readings ordered by time. Readings are
// paired per sensor, keeping their relative order. Hours are taken in loc.
// It returns nil when there are no readings at all.
func Aggregate(readings []Reading, loc *time.Location) *Daily {
	if len(readings) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	daily := &Daily{}
	last := make(map[string]Reading, 4)

	for _, curr := range readings {
		prev, seen := last[curr.SensorID]
		last[curr.SensorID] = curr
		if !seen || prev.VolumeLiters == nil || curr.VolumeLiters == nil {
			continue
		}

		used := *prev.VolumeLiters - *curr.VolumeLiters
		if !(used > 0) {
			continue
		}

		daily.Total += used
		daily.Hourly[curr.Timestamp.In(loc).Hour()] += used
	}

	daily.TotalLitres = int64(math.Round(daily.Total))
	daily.PeakUsageHour = peakHour(daily.Hourly)
	return daily
}

// peakHour picks the hour with the highest usage, lowest hour on ties.
// A day without usage peaks at hour 0.
func peakHour(hourly [HoursPerDay]float64) int {
	peak, max := 0, 0.0
	for h, v := range hourly {
		if v > max {
			peak, max = h, v
		}
	}
	return peak
}
