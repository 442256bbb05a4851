package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PinSQLite struct {
	db *sql.DB
}

func NewPinSQLite(db *sql.DB) *PinSQLite { return &PinSQLite{db: db} }

const upsertPinSQL = `
	INSERT INTO pin_states (pin, state, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(pin) DO UPDATE SET
		state=excluded.state,
		updated_at=excluded.updated_at
`

// Get returns the current state of a pin. An absent row means the pin has
// never been driven: state 0.
func (r *PinSQLite) Get(ctx context.Context, pin string) (int, error) {
	row := r.db.QueryRowContext(ctx, "SELECT state FROM pin_states WHERE pin = ?", pin)

	var state int
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return state, nil
}

// Set upserts the canonical state of a pin.
func (r *PinSQLite) Set(ctx context.Context, pin string, state int) error {
	_, err := r.db.ExecContext(ctx, upsertPinSQL, pin, state, time.Now().UTC())
	return err
}

// All returns the current state of every known pin.
func (r *PinSQLite) All(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT pin, state FROM pin_states")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			pin   string
			state int
		)
		if err := rows.Scan(&pin, &state); err != nil {
			return nil, err
		}
		out[pin] = state
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
