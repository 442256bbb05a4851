package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type ConfigSQLite struct {
	db *sql.DB
}

func NewConfigSQLite(db *sql.DB) *ConfigSQLite { return &ConfigSQLite{db: db} }

// single-row snapshot, same idiom as the pin upsert
const (
	configRowID = 1

	upsertConfigSQL = `
		INSERT INTO hub_config (id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`
)

// Save persists the configuration snapshot (raw JSON).
func (r *ConfigSQLite) Save(ctx context.Context, raw []byte) error {
	_, err := r.db.ExecContext(ctx, upsertConfigSQL, configRowID, string(raw), time.Now().UTC())
	return err
}

// Load returns the persisted snapshot, or nil when none exists yet.
func (r *ConfigSQLite) Load(ctx context.Context) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, "SELECT data FROM hub_config WHERE id = ?", configRowID)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(data), nil
}
