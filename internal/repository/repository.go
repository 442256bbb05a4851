package repository

import (
	"context"
	"database/sql"

	"esphub/internal/models"
)

type TelemetryRepo interface {
	Append(ctx context.Context, rec models.TelemetryRecord) error
	Latest(ctx context.Context) (*models.TelemetryRecord, error)
	List(ctx context.Context) ([]models.TelemetryRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type PinRepo interface {
	Get(ctx context.Context, pin string) (int, error)
	Set(ctx context.Context, pin string, state int) error
	All(ctx context.Context) (map[string]int, error)
}

// ConfigRepo persists the single hub configuration snapshot as raw JSON.
type ConfigRepo interface {
	Save(ctx context.Context, raw []byte) error
	Load(ctx context.Context) ([]byte, error)
}

type Repository struct {
	Telemetry TelemetryRepo
	Pins      PinRepo
	Config    ConfigRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Telemetry: NewTelemetrySQLite(db),
		Pins:      NewPinSQLite(db),
		Config:    NewConfigSQLite(db),
	}
}
