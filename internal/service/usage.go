package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/campus-water-monitor/internal/campus"
	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/usage"
	"go.uber.org/zap"
)

const (
	maxUsageDays     = 365
	activeAlertLimit = 50
	dateLayout       = "2006-01-02"
)

// DailyUsage is the consumption of one building on one day
type DailyUsage struct {
	BuildingID    string `json:"buildingId"`
	BuildingName  string `json:"buildingName"`
	Date          string `json:"date"`
	TotalLitres   int64  `json:"totalLitres"`
	PeakUsageHour int    `json:"peakUsageHour"`
}

// HourlyUsage is the rounded consumption of every building during one hour
type HourlyUsage struct {
	Hour      int
	Buildings map[string]int64
}

// MarshalJSON flattens buildings next to the hour: {"hour":7,"hostel_a":120,...}
func (h HourlyUsage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Buildings)+1)
	for id, litres := range h.Buildings {
		out[id] = litres
	}
	out["hour"] = h.Hour
	return json.Marshal(out)
}

// Alert is an alert as shown on the dashboard
type Alert struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	BuildingID    string     `json:"buildingId"`
	BuildingName  string     `json:"buildingName"`
	LocationLabel string     `json:"locationLabel"`
	SensorID      string     `json:"sensorId"`
	Issue         string     `json:"issue"`
	DetectedAt    time.Time  `json:"detectedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// UsageService serves consumption reports and alerts
type UsageService struct {
	store     UsageStore
	buildings campus.Catalog
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewUsageService creates a new usage service. Days and hours are taken in loc.
func NewUsageService(store UsageStore, buildings campus.Catalog, loc *time.Location, logger *zap.Logger) *UsageService {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageService{
		store:     store,
		buildings: buildings,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// DailyUsage computes one building's consumption on the day containing date.
// It returns nil when the building has no readings that day.
func (s *UsageService) DailyUsage(ctx context.Context, buildingID string, date time.Time) (*DailyUsage, error) {
	daily, err := s.aggregate(ctx, buildingID, date)
	if err != nil || daily == nil {
		return nil, err
	}

	return &DailyUsage{
		BuildingID:    buildingID,
		BuildingName:  s.buildings.Name(buildingID),
		Date:          s.startOfDay(date).Format(dateLayout),
		TotalLitres:   daily.TotalLitres,
		PeakUsageHour: daily.PeakUsageHour,
	}, nil
}

// UsageByDays reports the last days days ending today, oldest day first and
// buildings in catalog order. Building-days without readings are left out.
func (s *UsageService) UsageByDays(ctx context.Context, days int) ([]DailyUsage, error) {
	if days < 1 || days > maxUsageDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, maxUsageDays)
	}

	today := s.startOfDay(s.now())
	results := make([]DailyUsage, 0, days*len(s.buildings))

	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		for _, building := range s.buildings {
			daily, err := s.DailyUsage(ctx, building.ID, date)
			if err != nil {
				return nil, err
			}
			if daily != nil {
				results = append(results, *daily)
			}
		}
	}

	return results, nil
}

// TodayHourly reports today's consumption per hour for every building.
// Each bucket is rounded on its own.
func (s *UsageService) TodayHourly(ctx context.Context) ([]HourlyUsage, error) {
	today := s.now()

	hourly := make([]HourlyUsage, usage.HoursPerDay)
	for h := range hourly {
		hourly[h] = HourlyUsage{Hour: h, Buildings: make(map[string]int64, len(s.buildings))}
	}

	for _, building := range s.buildings {
		daily, err := s.aggregate(ctx, building.ID, today)
		if err != nil {
			return nil, err
		}

		var rounded [usage.HoursPerDay]int64
		if daily != nil {
			rounded = daily.HourlyRounded()
		}
		for h := range hourly {
			hourly[h].Buildings[building.ID] = rounded[h]
		}
	}

	return hourly, nil
}

// ActiveAlerts returns unresolved alerts, newest first
func (s *UsageService) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.store.GetActiveAlerts(ctx, activeAlertLimit)
	if err != nil {
		return nil, storeError("failed to load active alerts", err)
	}

	alerts := make([]Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, s.toAlert(row))
	}
	return alerts, nil
}

// ResolveAlert marks an alert resolved as of now
func (s *UsageService) ResolveAlert(ctx context.Context, alertID string) error {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	found, err := s.store.ResolveAlert(ctx, alertID, s.now())
	if err != nil {
		return storeError("failed to resolve alert", err)
	}
	if !found {
		return fmt.Errorf("%w: alert %s", ErrNotFound, alertID)
	}

	s.logger.Info("alert resolved", zap.String("alert_id", alertID))
	return nil
}

func (s *UsageService) aggregate(ctx context.Context, buildingID string, date time.Time) (*usage.Daily, error) {
	from := s.startOfDay(date)
	to := from.AddDate(0, 0, 1)

	rows, err := s.store.GetBuildingReadings(ctx, buildingID, from, to)
	if err != nil {
		return nil, storeError("failed to load building readings", err)
	}

	return usage.Aggregate(toUsageReadings(rows), s.loc), nil
}

func (s *UsageService) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func (s *UsageService) toAlert(row db.ActiveAlert) Alert {
	return Alert{
		ID:            row.ID,
		Status:        row.Status,
		BuildingID:    row.BuildingID,
		BuildingName:  s.buildings.Name(row.BuildingID),
		LocationLabel: row.LocationLabel,
		SensorID:      row.SensorID,
		Issue:         row.Issue,
		DetectedAt:    row.DetectedAt,
		ResolvedAt:    row.ResolvedAt,
	}
}

func toUsageReadings(rows []db.BuildingReading) []usage.Reading {
	out := make([]usage.Reading, len(rows))
	for i, r := range rows {
		out[i] = usage.Reading{
			SensorID:     r.SensorID,
			Timestamp:    r.Timestamp,
			VolumeLiters: r.VolumeLiters,
		}
	}
	return out
}
