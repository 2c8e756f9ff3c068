package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/septivank/campus-water-monitor/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// DBTX is the subset of pgxpool.Pool the repository uses
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database operations
type Repository struct {
	pool DBTX
}

// NewRepository creates a new repository
func NewRepository(pool DBTX) *Repository {
	return &Repository{pool: pool}
}

const sensorColumns = `id, building_id, location_label, tank_height_cm, tank_diameter_cm`

// GetSensor returns the sensor with the given id, or nil when it does not exist
func (r *Repository) GetSensor(ctx context.Context, sensorID string) (*db.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = $1`

	sensor, err := scanSensor(r.pool.QueryRow(ctx, query, sensorID))
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor: %w", err)
	}
	return sensor, nil
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockSensorTx loads a sensor and holds its row lock until the transaction
// ends, serializing ingestion per sensor. Returns nil when the sensor does not exist.
func (r *Repository) LockSensorTx(ctx context.Context, tx pgx.Tx, sensorID string) (*db.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = $1 FOR UPDATE`

	sensor, err := scanSensor(tx.QueryRow(ctx, query, sensorID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock sensor: %w", err)
	}
	return sensor, nil
}

// GetLatestReadingTx returns the most recently stored reading of a sensor, or nil
func (r *Repository) GetLatestReadingTx(ctx context.Context, tx pgx.Tx, sensorID string) (*db.SensorReading, error) {
	query := `
		SELECT id, sensor_id, distance_cm, water_level_cm, water_level_percent, volume_liters, timestamp
		FROM sensor_readings
		WHERE sensor_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	reading, err := scanReading(tx.QueryRow(ctx, query, sensorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous reading: %w", err)
	}
	return reading, nil
}

// InsertReadingTx inserts a processed reading and sets its generated id
func (r *Repository) InsertReadingTx(ctx context.Context, tx pgx.Tx, reading *db.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (
			sensor_id, distance_cm, water_level_cm, water_level_percent, volume_liters, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		reading.SensorID,
		reading.DistanceCm,
		reading.WaterLevelCm,
		reading.WaterLevelPercent,
		reading.VolumeLiters,
		reading.Timestamp,
	).Scan(&reading.ID)

	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	return nil
}

// InsertAlertTx inserts an alert within a transaction
func (r *Repository) InsertAlertTx(ctx context.Context, tx pgx.Tx, alert *db.Alert) error {
	query := `
		INSERT INTO alerts (id, status, building_id, sensor_id, issue, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(ctx, query,
		alert.ID,
		alert.Status,
		alert.BuildingID,
		alert.SensorID,
		alert.Issue,
		alert.DetectedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// GetBuildingReadings returns readings of all sensors in a building with
// from <= timestamp < to, oldest first
func (r *Repository) GetBuildingReadings(ctx context.Context, buildingID string, from, to time.Time) ([]db.BuildingReading, error) {
	query := `
		SELECT sr.sensor_id, sr.volume_liters, sr.timestamp
		FROM sensor_readings sr
		JOIN sensors s ON sr.sensor_id = s.id
		WHERE s.building_id = $1
		  AND sr.timestamp >= $2
		  AND sr.timestamp < $3
		ORDER BY sr.timestamp ASC, sr.id ASC
	`

	rows, err := r.pool.Query(ctx, query, buildingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query building readings: %w", err)
	}
	defer rows.Close()

	var readings []db.BuildingReading
	for rows.Next() {
		var (
			reading db.BuildingReading
			volume  pgtype.Float8
		)
		if err := rows.Scan(&reading.SensorID, &volume, &reading.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		reading.VolumeLiters = float8Ptr(volume)
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// GetSensorReadings returns the latest readings of a sensor, newest first
func (r *Repository) GetSensorReadings(ctx context.Context, sensorID string, limit int) ([]db.SensorReading, error) {
	query := `
		SELECT id, sensor_id, distance_cm, water_level_cm, water_level_percent, volume_liters, timestamp
		FROM sensor_readings
		WHERE sensor_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer rows.Close()

	var readings []db.SensorReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// GetActiveAlerts returns critical and warning alerts, newest first
func (r *Repository) GetActiveAlerts(ctx context.Context, limit int) ([]db.ActiveAlert, error) {
	query := `
		SELECT a.id, a.status, a.building_id, a.sensor_id, a.issue, a.detected_at, s.location_label
		FROM alerts a
		JOIN sensors s ON a.sensor_id = s.id
		WHERE a.status IN ($1, $2)
		ORDER BY a.detected_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, db.AlertStatusCritical, db.AlertStatusWarning, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []db.ActiveAlert
	for rows.Next() {
		var alert db.ActiveAlert
		if err := rows.Scan(
			&alert.ID,
			&alert.Status,
			&alert.BuildingID,
			&alert.SensorID,
			&alert.Issue,
			&alert.DetectedAt,
			&alert.LocationLabel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return alerts, nil
}

// ResolveAlert marks an alert resolved. It reports false when no alert has the id.
func (r *Repository) ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET status = $1, resolved_at = $2
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, db.AlertStatusResolved, resolvedAt, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

const sensorStatusQuery = `
	SELECT s.id, s.building_id, s.location_label,
	       sr.water_level_percent, sr.volume_liters, sr.timestamp
	FROM sensors s
	LEFT JOIN LATERAL (
		SELECT water_level_percent, volume_liters, timestamp
		FROM sensor_readings r
		WHERE r.sensor_id = s.id
		ORDER BY r.id DESC
		LIMIT 1
	) sr ON TRUE
`

// GetAllSensorStatus returns every sensor with its latest reading
func (r *Repository) GetAllSensorStatus(ctx context.Context) ([]db.SensorStatus, error) {
	rows, err := r.pool.Query(ctx, sensorStatusQuery+` ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor status: %w", err)
	}
	defer rows.Close()

	var statuses []db.SensorStatus
	for rows.Next() {
		status, err := scanSensorStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor status: %w", err)
		}
		statuses = append(statuses, *status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return statuses, nil
}

// GetSensorStatus returns one sensor with its latest reading, or nil
func (r *Repository) GetSensorStatus(ctx context.Context, sensorID string) (*db.SensorStatus, error) {
	status, err := scanSensorStatus(r.pool.QueryRow(ctx, sensorStatusQuery+` WHERE s.id = $1`, sensorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor status: %w", err)
	}
	return status, nil
}

func scanSensor(row pgx.Row) (*db.Sensor, error) {
	var (
		sensor   db.Sensor
		diameter pgtype.Float8
	)
	err := row.Scan(
		&sensor.ID,
		&sensor.BuildingID,
		&sensor.LocationLabel,
		&sensor.TankHeightCm,
		&diameter,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sensor.TankDiameterCm = float8Ptr(diameter)
	return &sensor, nil
}

func scanReading(row pgx.Row) (*db.SensorReading, error) {
	var (
		reading db.SensorReading
		volume  pgtype.Float8
	)
	err := row.Scan(
		&reading.ID,
		&reading.SensorID,
		&reading.DistanceCm,
		&reading.WaterLevelCm,
		&reading.WaterLevelPercent,
		&volume,
		&reading.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	reading.VolumeLiters = float8Ptr(volume)
	return &reading, nil
}

func scanSensorStatus(row pgx.Row) (*db.SensorStatus, error) {
	var (
		status  db.SensorStatus
		percent pgtype.Float8
		volume  pgtype.Float8
		last    pgtype.Timestamptz
	)
	err := row.Scan(
		&status.SensorID,
		&status.BuildingID,
		&status.LocationLabel,
		&percent,
		&volume,
		&last,
	)
	if err != nil {
		return nil, err
	}
	status.WaterLevelPercent = float8Ptr(percent)
	status.VolumeLiters = float8Ptr(volume)
	if last.Valid {
		t := last.Time
		status.LastReadingAt = &t
	}
	return &status, nil
}

func float8Ptr(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
