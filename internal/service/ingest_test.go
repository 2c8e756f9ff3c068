package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/septivank/campus-water-monitor/internal/anomaly"
	"github.com/septivank/campus-water-monitor/internal/db"
	"github.com/septivank/campus-water-monitor/internal/tank"
	"github.com/septivank/campus-water-monitor/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func hostelTankSensor() db.Sensor {
	return db.Sensor{
		ID:             "S001",
		BuildingID:     "hostel_a",
		LocationLabel:  "Hostel A Roof",
		TankHeightCm:   200,
		TankDiameterCm: ptr(100),
	}
}

func newTestIngestService(store IngestStore, publisher EventPublisher, now time.Time) *IngestService {
	svc := NewIngestService(
		store,
		publisher,
		anomaly.NewDetector(20, 10),
		validator.NewValidator(10080),
		zap.NewNop(),
	)
	svc.now = func() time.Time { return now }
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("alert-%d", ids)
	}
	return svc
}

func reading(sensorID string, distance float64, ts time.Time) ReadingInput {
	return ReadingInput{SensorID: sensorID, DistanceCm: ptr(distance), Timestamp: ts.Format(time.RFC3339)}
}

func TestProcessReading_FirstReadingNeverAlerts(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	pub := &fakePublisher{}
	svc := newTestIngestService(store, pub, t0)

	// an empty tank right away would be a leak if there were a previous reading
	result, err := svc.ProcessReading(context.Background(), reading("S001", 200, t0))

	require.NoError(t, err)
	assert.Equal(t, 0.0, result.WaterLevelPercent)
	assert.Empty(t, store.alerts)
	require.Len(t, store.readings, 1)
	assert.Len(t, pub.readings, 1)
	assert.Empty(t, pub.alerts)
}

func TestProcessReading_ComputesLevelAndVolume(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	result, err := svc.ProcessReading(context.Background(), reading("S001", 50, t0))

	require.NoError(t, err)
	assert.Equal(t, "S001", result.SensorID)
	assert.Equal(t, 50.0, result.DistanceCm)
	assert.Equal(t, 150.0, result.WaterLevelCm)
	assert.Equal(t, 75.0, result.WaterLevelPercent)
	require.NotNil(t, result.VolumeLiters)
	assert.Equal(t, 1178.1, *result.VolumeLiters)
	assert.True(t, t0.Equal(result.Timestamp))
}

func TestProcessReading_DefaultsTimestampToReceivedAt(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	result, err := svc.ProcessReading(context.Background(), ReadingInput{SensorID: "S001", DistanceCm: ptr(10)})

	require.NoError(t, err)
	assert.True(t, t0.Equal(result.Timestamp))
}

func TestProcessReading_CriticalDrop(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.addReading(db.SensorReading{SensorID: "S001", WaterLevelPercent: 80, Timestamp: t0})
	pub := &fakePublisher{}
	now := t0.Add(61 * time.Minute)
	svc := newTestIngestService(store, pub, now)

	// distance 100 on a 200cm tank is 50%
	_, err := svc.ProcessReading(context.Background(), reading("S001", 100, t0.Add(time.Hour)))

	require.NoError(t, err)
	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	assert.Equal(t, "alert-1", alert.ID)
	assert.Equal(t, db.AlertStatusCritical, alert.Status)
	assert.Equal(t, "hostel_a", alert.BuildingID)
	assert.Equal(t, "Critical: Water level dropped 30.0% in 60 minutes - possible leak", alert.Issue)
	assert.True(t, now.Equal(alert.DetectedAt))

	require.Len(t, pub.alerts, 1)
	assert.Equal(t, "alert-1", pub.alerts[0].AlertID)
}

func TestProcessReading_WarningDrop(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.addReading(db.SensorReading{SensorID: "S001", WaterLevelPercent: 90, Timestamp: t0})
	svc := newTestIngestService(store, &fakePublisher{}, t0.Add(time.Hour))

	// distance 50 is 75%
	_, err := svc.ProcessReading(context.Background(), reading("S001", 50, t0.Add(time.Hour)))

	require.NoError(t, err)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, db.AlertStatusWarning, store.alerts[0].Status)
	assert.Equal(t, "Warning: Unusual water level drop of 15.0% detected", store.alerts[0].Issue)
}

func TestProcessReading_NormalUsage(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.addReading(db.SensorReading{SensorID: "S001", WaterLevelPercent: 80, Timestamp: t0})
	svc := newTestIngestService(store, &fakePublisher{}, t0.Add(time.Hour))

	// distance 56 is 72%
	_, err := svc.ProcessReading(context.Background(), reading("S001", 56, t0.Add(time.Hour)))

	require.NoError(t, err)
	assert.Empty(t, store.alerts)
	assert.Len(t, store.readings, 2)
}

func TestProcessReading_DuplicateTimestampSkipsLeakCheck(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.addReading(db.SensorReading{SensorID: "S001", WaterLevelPercent: 95, Timestamp: t0})
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S001", 200, t0))

	require.NoError(t, err)
	assert.Empty(t, store.alerts)
	assert.Len(t, store.readings, 2)
}

func TestProcessReading_UnknownSensor(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	pub := &fakePublisher{}
	svc := newTestIngestService(store, pub, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S404", 10, t0))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.readings)
	assert.Equal(t, 1, store.rollbacks)
	assert.Empty(t, pub.readings)
}

func TestProcessReading_InvalidInputRejectedBeforeStore(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.failBegin = errStoreDown
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	for _, in := range []ReadingInput{
		{SensorID: "S001", DistanceCm: ptr(-5)},
		{SensorID: "S001"},
		{DistanceCm: ptr(10)},
		{SensorID: "S001", DistanceCm: ptr(10), Timestamp: "not a time"},
	} {
		_, err := svc.ProcessReading(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, store.readings)
}

func TestProcessReading_ZeroTankHeightIsUndefined(t *testing.T) {
	broken := hostelTankSensor()
	broken.TankHeightCm = 0
	store := newFakeStore(broken)
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S001", 10, t0))

	assert.ErrorIs(t, err, ErrComputationUndefined)
	assert.Empty(t, store.readings)
}

func TestProcessReading_AlertFailureStoresNothing(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.addReading(db.SensorReading{SensorID: "S001", WaterLevelPercent: 80, Timestamp: t0})
	store.failInsertAlert = errStoreDown
	pub := &fakePublisher{}
	svc := newTestIngestService(store, pub, t0.Add(time.Hour))

	_, err := svc.ProcessReading(context.Background(), reading("S001", 100, t0.Add(time.Hour)))

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, store.readings, 1, "only the seeded reading remains")
	assert.Equal(t, 0, store.commits)
	assert.Empty(t, pub.readings)
}

func TestProcessReading_StoreUnavailable(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	store.failBegin = errStoreDown
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S001", 10, t0))

	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestProcessReading_PublishFailureDoesNotFail(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	pub := &fakePublisher{err: errStoreDown}
	svc := newTestIngestService(store, pub, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S001", 10, t0))

	require.NoError(t, err)
	assert.Len(t, store.readings, 1)
}

func TestProcessReading_StoredValuesReproducible(t *testing.T) {
	sensor := hostelTankSensor()
	store := newFakeStore(sensor)
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	_, err := svc.ProcessReading(context.Background(), reading("S001", 37.3, t0))
	require.NoError(t, err)
	stored := store.readings[0]

	again, err := tank.Measure(stored.DistanceCm, tank.Config{HeightCm: sensor.TankHeightCm, DiameterCm: sensor.TankDiameterCm})
	require.NoError(t, err)
	assert.Equal(t, stored.WaterLevelCm, again.WaterLevelCm)
	assert.Equal(t, stored.WaterLevelPercent, again.WaterLevelPercent)
	assert.Equal(t, *stored.VolumeLiters, *again.VolumeLiters)
}

func TestProcessMessage(t *testing.T) {
	store := newFakeStore(hostelTankSensor())
	svc := newTestIngestService(store, &fakePublisher{}, t0)

	err := svc.ProcessMessage(context.Background(), []byte(`{"sensorId":"S001","distanceCm":40}`))
	require.NoError(t, err)
	assert.Len(t, store.readings, 1)

	err = svc.ProcessMessage(context.Background(), []byte(`{"sensorId":`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAlertStatus(t *testing.T) {
	assert.Equal(t, db.AlertStatusCritical, alertStatus(anomaly.SeverityCritical))
	assert.Equal(t, db.AlertStatusWarning, alertStatus(anomaly.SeverityWarning))
}
