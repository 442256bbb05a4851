package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"esphub/internal/config"
	"esphub/internal/events"
	"esphub/internal/logger"
	"esphub/internal/models"
	"esphub/internal/repository"
)

// Sentinel errors surfaced to HTTP handlers as client errors. Anything else
// coming out of a service is a store failure and maps to a server error.
var (
	ErrMalformedPayload = errors.New("malformed payload: body must be a JSON object")
	ErrInvalidState     = errors.New("invalid state: must be 0 or 1")
)

// Ingest runs the full pipeline for one inbound telemetry report:
// normalize, persist, broadcast, evaluate automation, actuate.
type Ingest interface {
	Process(ctx context.Context, raw []byte, source models.Source) (models.TelemetryRecord, error)
}

// Telemetry is the read/management side of the record store.
type Telemetry interface {
	Latest(ctx context.Context) (*models.TelemetryRecord, error)
	History(ctx context.Context) ([]models.TelemetryRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Pins exposes manual pin control and the current state snapshot.
type Pins interface {
	ManualSet(ctx context.Context, pin string, state int) (models.PinOutcome, error)
	States(ctx context.Context) (map[string]int, error)
}

// Settings exposes the hub configuration snapshot and partial updates.
type Settings interface {
	Get() config.Config
	Update(ctx context.Context, partial []byte) (config.Config, error)
}

// DeviceSession is the live MQTT side of the device link, satisfied by
// *mqtt.Client.
type DeviceSession interface {
	Configure(cfg config.MQTTConfig) error
	Connected() bool
	PublishPinCommand(pin, state int) error
	PublishConfig(raw []byte) error
}

type Service struct {
	Ingest
	Telemetry
	Pins
	Settings
}

type Deps struct {
	Repos          *repository.Repository
	Config         *config.Store
	Hub            *events.Hub
	Session        DeviceSession
	Log            *logger.Logger
	UTCOffsetHours int
	RelayTimeout   time.Duration
}

func NewService(d Deps) *Service {
	relay := NewDeviceRelay(d.Session, &http.Client{Timeout: d.RelayTimeout}, d.Log)
	pins := NewPinService(d.Repos.Pins, d.Config, relay, d.Log)
	return &Service{
		Ingest:    NewIngestService(d.Repos.Telemetry, d.Config, pins, d.Hub, relay, d.Log, d.UTCOffsetHours),
		Telemetry: NewTelemetryService(d.Repos.Telemetry, d.Hub),
		Pins:      pins,
		Settings:  NewSettingsService(d.Config, d.Session, relay, d.Log),
	}
}
