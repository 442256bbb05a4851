package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"esphub/internal/config"
	"esphub/internal/logger"
)

// Relay delivers commands to the physical device. Failures are logged and
// reported in the return value, never propagated: by the time a command is
// relayed the canonical state is already persisted and authoritative. There
// is no retry; the next telemetry cycle or manual action is the retry.
type Relay interface {
	SendPinCommand(pin, state int) bool
	SendConfig(cfg config.Config) bool
	Available() bool
	NoteDeviceAddress(addr string)
	DeviceAddress() string
}

// DeviceRelay prefers the MQTT session and falls back to a direct HTTP call
// against the device's last known address, learned opportunistically from
// inbound HTTP reports.
type DeviceRelay struct {
	session DeviceSession
	httpc   *http.Client
	log     *logger.Logger

	mu         sync.RWMutex
	deviceAddr string
}

func NewDeviceRelay(session DeviceSession, httpc *http.Client, log *logger.Logger) *DeviceRelay {
	return &DeviceRelay{session: session, httpc: httpc, log: log}
}

// NoteDeviceAddress records the device's network address from an inbound
// report, enabling the HTTP fallback path.
func (r *DeviceRelay) NoteDeviceAddress(addr string) {
	if addr == "" {
		return
	}
	r.mu.Lock()
	r.deviceAddr = addr
	r.mu.Unlock()
}

func (r *DeviceRelay) DeviceAddress() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deviceAddr
}

// Available reports whether any delivery transport is currently usable.
func (r *DeviceRelay) Available() bool {
	return r.session.Connected() || r.DeviceAddress() != ""
}

// SendPinCommand delivers {pin, state}, returning whether delivery succeeded.
func (r *DeviceRelay) SendPinCommand(pin, state int) bool {
	if r.session.Connected() {
		if err := r.session.PublishPinCommand(pin, state); err != nil {
			r.log.Errorw("relay_mqtt_pin_failed", "pin", pin, "state", state, "err", err)
			return false
		}
		r.log.Infow("relay_pin_sent", "transport", "mqtt", "pin", pin, "state", state)
		return true
	}

	addr := r.DeviceAddress()
	if addr == "" {
		r.log.Warnw("relay_pin_undeliverable", "pin", pin, "state", state)
		return false
	}
	url := fmt.Sprintf("http://%s/control?pin=%d&state=%d", addr, pin, state)
	resp, err := r.httpc.Get(url)
	if err != nil {
		r.log.Errorw("relay_http_pin_failed", "url", url, "err", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.log.Errorw("relay_http_pin_rejected", "url", url, "status", resp.StatusCode)
		return false
	}
	r.log.Infow("relay_pin_sent", "transport", "http", "pin", pin, "state", state)
	return true
}

// SendConfig publishes the device-facing config view, retained. Config only
// travels over MQTT; the HTTP fallback is for pin commands.
func (r *DeviceRelay) SendConfig(cfg config.Config) bool {
	if !r.session.Connected() {
		r.log.Warnw("relay_config_skipped_no_session")
		return false
	}
	raw, err := json.Marshal(cfg.DeviceView())
	if err != nil {
		r.log.Errorw("relay_config_marshal_failed", "err", err)
		return false
	}
	if err := r.session.PublishConfig(raw); err != nil {
		r.log.Errorw("relay_config_failed", "err", err)
		return false
	}
	r.log.Infow("relay_config_sent")
	return true
}
