package service

import (
	"context"
	"reflect"

	"esphub/internal/config"
	"esphub/internal/logger"
)

// SettingsService applies partial config updates and keeps the broker session
// and the device's retained config in step with the snapshot.
type SettingsService struct {
	cfg     *config.Store
	session DeviceSession
	relay   Relay
	log     *logger.Logger
}

func NewSettingsService(cfg *config.Store, session DeviceSession, relay Relay, log *logger.Logger) *SettingsService {
	return &SettingsService{cfg: cfg, session: session, relay: relay, log: log}
}

func (s *SettingsService) Get() config.Config {
	return s.cfg.Get()
}

// Update merges a partial JSON document into the snapshot and persists it.
// When the mqtt section changed the session is reconfigured, and the new
// config is pushed to the device's retained topic. Broker trouble never
// fails the update: the snapshot is already persisted.
func (s *SettingsService) Update(ctx context.Context, partial []byte) (config.Config, error) {
	before := s.cfg.Get().MQTT

	updated, err := s.cfg.Update(ctx, partial)
	if err != nil {
		return config.Config{}, err
	}

	if updated.MQTT.Enabled {
		if !reflect.DeepEqual(before, updated.MQTT) {
			s.log.Infow("mqtt_config_changed_reconnecting")
			if err := s.session.Configure(updated.MQTT); err != nil {
				s.log.Errorw("mqtt_reconfigure_failed", "err", err)
			}
		}
		go s.relay.SendConfig(updated)
	} else if !reflect.DeepEqual(before, updated.MQTT) {
		if err := s.session.Configure(updated.MQTT); err != nil {
			s.log.Errorw("mqtt_reconfigure_failed", "err", err)
		}
	}

	return updated, nil
}
