package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/j-veylop/vehicle-dashboard/internal/aggregator"
	"github.com/j-veylop/vehicle-dashboard/internal/logger"
	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

// InsertOdometerReading appends a reading for the given user.
// A zero timestamp is replaced with the current time.
func (db *DB) InsertOdometerReading(ctx context.Context, r *models.OdometerReading) error {
	query := `INSERT INTO odometer_readings (user_id, reading, created_at) VALUES (?, ?, ?)`

	timestamp := r.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	result, err := db.ExecContext(ctx, query,
		r.UserID,
		r.Value,
		formatTime(timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert odometer reading: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		r.ID = id
	}
	r.Timestamp = timestamp

	return nil
}

// InsertFuelEntry appends a fuel purchase for the given user.
// A zero timestamp is replaced with the current time.
func (db *DB) InsertFuelEntry(ctx context.Context, e *models.FuelEntry) error {
	query := `INSERT INTO fuel_entries (user_id, fuel_quantity, fuel_price, created_at) VALUES (?, ?, ?, ?)`

	timestamp := e.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	result, err := db.ExecContext(ctx, query,
		e.UserID,
		formatAmount(e.Quantity),
		formatAmount(e.Price),
		formatTime(timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fuel entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}
	e.Timestamp = timestamp

	return nil
}

// AppendOdometerReading records a reading taken at the given time (zero means now).
func (db *DB) AppendOdometerReading(ctx context.Context, userID string, value float64, at time.Time) (models.OdometerReading, error) {
	r := models.OdometerReading{UserID: userID, Value: value, Timestamp: at}
	if err := db.InsertOdometerReading(ctx, &r); err != nil {
		return models.OdometerReading{}, err
	}
	return r, nil
}

// AppendFuelEntry records a fuel purchase made at the given time (zero means now).
func (db *DB) AppendFuelEntry(ctx context.Context, userID string, quantity, price float64, at time.Time) (models.FuelEntry, error) {
	e := models.FuelEntry{UserID: userID, Quantity: quantity, Price: price, Timestamp: at}
	if err := db.InsertFuelEntry(ctx, &e); err != nil {
		return models.FuelEntry{}, err
	}
	return e, nil
}

// ListOdometerReadings returns every reading of a user, newest first.
func (db *DB) ListOdometerReadings(ctx context.Context, userID string) ([]models.OdometerReading, error) {
	query := `
		SELECT id, user_id, reading, created_at
		FROM odometer_readings
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query odometer readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var readings []models.OdometerReading
	for rows.Next() {
		var r models.OdometerReading
		var value any
		var createdAt string

		if err := rows.Scan(&r.ID, &r.UserID, &value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan odometer reading: %w", err)
		}

		t, ok := parseTimeString(createdAt)
		if !ok {
			logger.Warn("Skipping odometer reading with unparseable timestamp", "id", r.ID, "created_at", createdAt)
			continue
		}
		r.Timestamp = t
		r.Value = readingValue(value)

		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating odometer readings: %w", err)
	}

	return readings, nil
}

// ListFuelEntries returns every fuel entry of a user, newest first.
// Quantity and price are parsed leniently: missing or malformed values read as 0.
func (db *DB) ListFuelEntries(ctx context.Context, userID string) ([]models.FuelEntry, error) {
	query := `
		SELECT id, user_id, fuel_quantity, fuel_price, created_at
		FROM fuel_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.FuelEntry
	for rows.Next() {
		var e models.FuelEntry
		var qty, price sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.UserID, &qty, &price, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fuel entry: %w", err)
		}

		t, ok := parseTimeString(createdAt)
		if !ok {
			logger.Warn("Skipping fuel entry with unparseable timestamp", "id", e.ID, "created_at", createdAt)
			continue
		}
		e.Timestamp = t
		e.Quantity = aggregator.ParseAmount(qty.String)
		e.Price = aggregator.ParseAmount(price.String)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fuel entries: %w", err)
	}

	return entries, nil
}

// CountEvents returns how many odometer readings and fuel entries a user has.
func (db *DB) CountEvents(ctx context.Context, userID string) (readings, fuel int, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM odometer_readings WHERE user_id = ?),
			(SELECT COUNT(*) FROM fuel_entries WHERE user_id = ?)
	`, userID, userID).Scan(&readings, &fuel)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count events: %w", err)
	}
	return readings, fuel, nil
}

// ListUsers returns every user id that has at least one recorded event.
func (db *DB) ListUsers(ctx context.Context) ([]string, error) {
	query := `
		SELECT user_id FROM odometer_readings
		UNION
		SELECT user_id FROM fuel_entries
		ORDER BY user_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}

	return users, rows.Err()
}

// readingValue converts a scanned reading column. The column has REAL
// affinity but other writers may leave text in it; malformed values read as 0.
func readingValue(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		return aggregator.ParseAmount(v)
	case []byte:
		return aggregator.ParseAmount(string(v))
	default:
		return 0
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
