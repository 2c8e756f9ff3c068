package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/mq"
	"github.com/septivank/campus-water-monitor/internal/repository"
)

// fakeStore is an in-memory Store. Writes made through a transaction only
// become visible on Commit.
type fakeStore struct {
	mu       sync.Mutex
	sensors  map[string]db.Sensor
	readings []db.SensorReading
	alerts   []db.Alert
	nextID   int64

	failInsertAlert error
	failBegin       error
	commits         int
	rollbacks       int
}

func newFakeStore(sensors ...db.Sensor) *fakeStore {
	s := &fakeStore{sensors: make(map[string]db.Sensor)}
	for _, sensor := range sensors {
		s.sensors[sensor.ID] = sensor
	}
	return s
}

type fakeTx struct {
	pgx.Tx
	store    *fakeStore
	readings []db.SensorReading
	alerts   []db.Alert
	done     bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.readings = append(t.store.readings, t.readings...)
	t.store.alerts = append(t.store.alerts, t.alerts...)
	t.store.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rollbacks++
	return nil
}

func (s *fakeStore) BeginTx(context.Context) (repository.Tx, error) {
	if s.failBegin != nil {
		return nil, s.failBegin
	}
	return &fakeTx{store: s}, nil
}

func (s *fakeStore) LockSensorTx(ctx context.Context, _ repository.Tx, sensorID string) (*db.Sensor, error) {
	return s.GetSensor(ctx, sensorID)
}

func (s *fakeStore) GetLatestReadingTx(_ context.Context, _ repository.Tx, sensorID string) (*db.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.readings) - 1; i >= 0; i-- {
		if s.readings[i].SensorID == sensorID {
			r := s.readings[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertReadingTx(_ context.Context, tx repository.Tx, reading *db.SensorReading) error {
	s.mu.Lock()
	s.nextID++
	reading.ID = s.nextID
	s.mu.Unlock()

	ftx := tx.(*fakeTx)
	ftx.readings = append(ftx.readings, *reading)
	return nil
}

func (s *fakeStore) InsertAlertTx(_ context.Context, tx repository.Tx, alert *db.Alert) error {
	if s.failInsertAlert != nil {
		return s.failInsertAlert
	}
	ftx := tx.(*fakeTx)
	ftx.alerts = append(ftx.alerts, *alert)
	return nil
}

func (s *fakeStore) GetSensor(_ context.Context, sensorID string) (*db.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sensor, ok := s.sensors[sensorID]
	if !ok {
		return nil, nil
	}
	return &sensor, nil
}

func (s *fakeStore) GetBuildingReadings(_ context.Context, buildingID string, from, to time.Time) ([]db.BuildingReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.BuildingReading
	for _, r := range s.readings {
		if s.sensors[r.SensorID].BuildingID != buildingID {
			continue
		}
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		out = append(out, db.BuildingReading{SensorID: r.SensorID, VolumeLiters: r.VolumeLiters, Timestamp: r.Timestamp})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *fakeStore) GetActiveAlerts(_ context.Context, limit int) ([]db.ActiveAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.ActiveAlert
	for _, a := range s.alerts {
		if a.Status == db.AlertStatusResolved {
			continue
		}
		out = append(out, db.ActiveAlert{Alert: a, LocationLabel: s.sensors[a.SensorID].LocationLabel})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ResolveAlert(_ context.Context, alertID string, resolvedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Status = db.AlertStatusResolved
			at := resolvedAt
			s.alerts[i].ResolvedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) GetAllSensorStatus(ctx context.Context) ([]db.SensorStatus, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sensors))
	for id := range s.sensors {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	out := make([]db.SensorStatus, 0, len(ids))
	for _, id := range ids {
		status, _ := s.GetSensorStatus(ctx, id)
		out = append(out, *status)
	}
	return out, nil
}

func (s *fakeStore) GetSensorStatus(ctx context.Context, sensorID string) (*db.SensorStatus, error) {
	sensor, _ := s.GetSensor(ctx, sensorID)
	if sensor == nil {
		return nil, nil
	}

	status := &db.SensorStatus{SensorID: sensor.ID, BuildingID: sensor.BuildingID, LocationLabel: sensor.LocationLabel}
	latest, _ := s.GetLatestReadingTx(ctx, nil, sensorID)
	if latest != nil {
		percent, ts := latest.WaterLevelPercent, latest.Timestamp
		status.WaterLevelPercent = &percent
		status.VolumeLiters = latest.VolumeLiters
		status.LastReadingAt = &ts
	}
	return status, nil
}

func (s *fakeStore) GetSensorReadings(_ context.Context, sensorID string, limit int) ([]db.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.SensorReading
	for i := len(s.readings) - 1; i >= 0 && len(out) < limit; i-- {
		if s.readings[i].SensorID == sensorID {
			out = append(out, s.readings[i])
		}
	}
	return out, nil
}

// addReading stores a reading directly, bypassing ingestion
func (s *fakeStore) addReading(r db.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.readings = append(s.readings, r)
}

type fakePublisher struct {
	readings []mq.ReadingProcessedEvent
	alerts   []mq.AlertRaisedEvent
	err      error
}

func (p *fakePublisher) PublishReadingProcessed(_ context.Context, e mq.ReadingProcessedEvent) error {
	p.readings = append(p.readings, e)
	return p.err
}

func (p *fakePublisher) PublishAlertRaised(_ context.Context, e mq.AlertRaisedEvent) error {
	p.alerts = append(p.alerts, e)
	return p.err
}

var errStoreDown = errors.New("connection refused")
