package db

import (
	"context"
	"fmt"

	"github.com/j-veylop/vehicle-dashboard/internal/logger"
)

// canonicalTimeGlob matches created_at values already written in timeLayout.
const canonicalTimeGlob = "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9] [0-9][0-9]:[0-9][0-9]:[0-9][0-9].[0-9][0-9][0-9]"

// NormalizeTimestamps rewrites created_at values into the layout this
// package writes, so that ORDER BY created_at stays chronological.
// Values carrying a UTC offset (RFC3339, Go's time.String()) are converted
// to UTC. Values that cannot be parsed are left untouched.
func (db *DB) NormalizeTimestamps() error {
	for _, table := range []string{"odometer_readings", "fuel_entries"} {
		if err := db.normalizeTable(context.Background(), table); err != nil {
			return fmt.Errorf("failed to normalize %s timestamps: %w", table, err)
		}
	}
	return nil
}

type pendingTimestamp struct {
	id        int64
	createdAt string
}

func (db *DB) normalizeTable(ctx context.Context, table string) error {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, created_at FROM %s WHERE created_at NOT GLOB ?`, table),
		canonicalTimeGlob)
	if err != nil {
		return err
	}

	var pending []pendingTimestamp
	for rows.Next() {
		var p pendingTimestamp
		if err := rows.Scan(&p.id, &p.createdAt); err != nil {
			_ = rows.Close()
			return err
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if len(pending) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`UPDATE %s SET created_at = ? WHERE id = ?`, table))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	rewritten := 0
	for _, p := range pending {
		t, ok := parseTimeString(p.createdAt)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, formatTime(t), p.id); err != nil {
			return err
		}
		rewritten++
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if rewritten > 0 {
		logger.Debug("Normalized timestamps", "table", table, "rows", rewritten)
	}
	return nil
}
