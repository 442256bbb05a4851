package service

import (
	"context"

	"esphub/internal/events"
	"esphub/internal/models"
	"esphub/internal/repository"
)

// TelemetryService is the read/management side of the record store. Store
// mutations are announced on the hub so dashboards drop stale rows.
type TelemetryService struct {
	records repository.TelemetryRepo
	hub     *events.Hub
}

func NewTelemetryService(records repository.TelemetryRepo, hub *events.Hub) *TelemetryService {
	return &TelemetryService{records: records, hub: hub}
}

func (s *TelemetryService) Latest(ctx context.Context) (*models.TelemetryRecord, error) {
	return s.records.Latest(ctx)
}

func (s *TelemetryService) History(ctx context.Context) ([]models.TelemetryRecord, error) {
	return s.records.List(ctx)
}

func (s *TelemetryService) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.records.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.hub.Publish(events.TypeDeleted, map[string]string{"id": id})
	}
	return deleted, nil
}

func (s *TelemetryService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.records.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.hub.Publish(events.TypeDeletedAll, map[string]int64{"count": n})
	return n, nil
}
