package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"esphub/internal/config"
	"esphub/internal/events"
	"esphub/internal/logger"
	"esphub/internal/models"
	"esphub/internal/repository"
)

// pinApplier is the slice of PinService the pipeline needs.
type pinApplier interface {
	ApplyDesired(ctx context.Context, pin string, state int) (models.PinOutcome, error)
}

// IngestService runs the telemetry pipeline: normalize, persist, broadcast,
// evaluate the automation policy, actuate.
type IngestService struct {
	records        repository.TelemetryRepo
	cfg            *config.Store
	pins           pinApplier
	hub            *events.Hub
	relay          Relay
	log            *logger.Logger
	utcOffsetHours int
	now            func() time.Time
}

func NewIngestService(records repository.TelemetryRepo, cfg *config.Store, pins pinApplier, hub *events.Hub, relay Relay, log *logger.Logger, utcOffsetHours int) *IngestService {
	return &IngestService{
		records:        records,
		cfg:            cfg,
		pins:           pins,
		hub:            hub,
		relay:          relay,
		log:            log,
		utcOffsetHours: utcOffsetHours,
		now:            time.Now,
	}
}

// Process ingests one raw report. Malformed bodies are dropped with
// ErrMalformedPayload and leave no record behind; anything past persistence
// is downstream of authoritative state and cannot unwind it.
func (s *IngestService) Process(ctx context.Context, raw []byte, source models.Source) (models.TelemetryRecord, error) {
	rec, err := s.normalize(raw, source)
	if err != nil {
		s.log.Warnw("telemetry_rejected", "source", source, "err", err)
		return models.TelemetryRecord{}, err
	}

	if err := s.records.Append(ctx, rec); err != nil {
		return models.TelemetryRecord{}, fmt.Errorf("persist record %s: %w", rec.ID, err)
	}
	s.log.Infow("telemetry_ingested", "id", rec.ID, "source", source)

	// HTTP reports carry the device's own address; remember it as the
	// fallback relay path.
	if source == models.SourceHTTP {
		if ip, ok := rec.Payload["ip"].(string); ok {
			s.relay.NoteDeviceAddress(ip)
		}
	}

	s.hub.Publish(events.TypeNew, rec)

	if desired, ok := decide(s.cfg.Get(), rec, s.now(), s.utcOffsetHours); ok {
		out, err := s.pins.ApplyDesired(ctx, autoLightPin, desired)
		if err != nil {
			return models.TelemetryRecord{}, fmt.Errorf("apply automation decision: %w", err)
		}
		if out.Changed {
			s.log.Infow("automation_decision_applied", "pin", autoLightPin, "state", desired, "sent", out.SentToEsp)
		}
	}

	return rec, nil
}

// normalize turns a raw decoded body into a canonical record, assigning
// identity and the ingestion timestamp. The payload must be a JSON object;
// its fields pass through opaquely.
func (s *IngestService) normalize(raw []byte, source models.Source) (models.TelemetryRecord, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return models.TelemetryRecord{}, ErrMalformedPayload
	}
	now := s.now().UTC()
	return models.TelemetryRecord{
		ID:         newRecordID(now),
		ReceivedAt: now,
		Source:     source,
		Payload:    payload,
	}, nil
}

// newRecordID builds a millisecond-epoch id with a random suffix, keeping
// ids unique under concurrent ingestion while sorting roughly by time.
func newRecordID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
