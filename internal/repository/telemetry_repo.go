package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"esphub/internal/models"
)

type TelemetrySQLite struct {
	db *sql.DB
}

func NewTelemetrySQLite(db *sql.DB) *TelemetrySQLite { return &TelemetrySQLite{db: db} }

const (
	insertRecordSQL = `
		INSERT INTO telemetry_records (id, received_at, source, payload)
		VALUES (?, ?, ?, ?)
	`

	selectRecordSQL = `
		SELECT id, received_at, source, payload FROM telemetry_records
	`
)

// Append inserts a new record. No deduplication: two reports with identical
// payloads produce two distinct rows.
func (r *TelemetrySQLite) Append(ctx context.Context, rec models.TelemetryRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tsUTC := rec.ReceivedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err = r.db.ExecContext(ctx, insertRecordSQL,
		rec.ID,
		tsUTC,
		string(rec.Source),
		string(payload),
	)
	return err
}

// Latest returns the most recently appended record, or nil when the store is
// empty. Record ids start with a millisecond epoch, so the id is a stable
// tie-breaker for rows sharing a timestamp.
func (r *TelemetrySQLite) Latest(ctx context.Context) (*models.TelemetryRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRecordSQL+" ORDER BY received_at DESC, id DESC LIMIT 1")

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// List returns all records ascending by receive time, for history/chart
// consumers.
func (r *TelemetrySQLite) List(ctx context.Context) ([]models.TelemetryRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRecordSQL+" ORDER BY received_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TelemetryRecord, 0, 64)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one record by id, reporting whether it existed.
func (r *TelemetrySQLite) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM telemetry_records WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every record, returning the number removed.
func (r *TelemetrySQLite) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM telemetry_records")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(scan func(dest ...any) error) (models.TelemetryRecord, error) {
	var (
		rec        models.TelemetryRecord
		source     string
		payloadStr string
	)
	if err := scan(&rec.ID, &rec.ReceivedAt, &source, &payloadStr); err != nil {
		return models.TelemetryRecord{}, err
	}
	rec.Source = models.Source(source)
	rec.ReceivedAt = rec.ReceivedAt.UTC()

	if payloadStr != "" {
		if err := json.Unmarshal([]byte(payloadStr), &rec.Payload); err != nil {
			return models.TelemetryRecord{}, fmt.Errorf("unmarshal payload for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
