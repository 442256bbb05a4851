package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"esphub/internal/config"
	"esphub/internal/logger"
	"esphub/internal/models"
	"esphub/internal/repository"
)

// gpioMapping translates logical pin numbers to the device's GPIO numbers.
var gpioMapping = map[int]int{12: 12, 13: 13, 14: 14}

// PinService owns canonical actuator state. The mutex serializes the
// read-compare-write cycle so two concurrent reports deciding conflicting
// states cannot interleave; the relay call happens outside the lock.
type PinService struct {
	mu    sync.Mutex
	pins  repository.PinRepo
	cfg   *config.Store
	relay Relay
	log   *logger.Logger
}

func NewPinService(pins repository.PinRepo, cfg *config.Store, relay Relay, log *logger.Logger) *PinService {
	return &PinService{pins: pins, cfg: cfg, relay: relay, log: log}
}

// ApplyDesired drives a pin to the automation's desired state. Unchanged
// state is a no-op: repeated identical telemetry must not re-issue commands.
func (s *PinService) ApplyDesired(ctx context.Context, pin string, state int) (models.PinOutcome, error) {
	if state != 0 && state != 1 {
		return models.PinOutcome{}, ErrInvalidState
	}

	s.mu.Lock()
	current, err := s.pins.Get(ctx, pin)
	if err != nil {
		s.mu.Unlock()
		return models.PinOutcome{}, err
	}
	if current == state {
		s.mu.Unlock()
		return models.PinOutcome{Pin: pin, State: state, Changed: false, SentToEsp: false}, nil
	}
	if err := s.pins.Set(ctx, pin, state); err != nil {
		s.mu.Unlock()
		return models.PinOutcome{}, err
	}
	s.mu.Unlock()

	s.log.Infow("pin_state_changed", "pin", pin, "state", state, "by", "automation")
	return models.PinOutcome{Pin: pin, State: state, Changed: true, SentToEsp: s.dispatch(pin, state)}, nil
}

// ManualSet applies a human-issued command. It always persists and relays,
// even when the value matches the current state: explicit commands are never
// deduplicated. A manual command on the automation-governed pin disables the
// automation flags so the next telemetry cycle cannot revert the human's
// action.
func (s *PinService) ManualSet(ctx context.Context, pin string, state int) (models.PinOutcome, error) {
	if state != 0 && state != 1 {
		return models.PinOutcome{}, ErrInvalidState
	}

	s.mu.Lock()
	if err := s.pins.Set(ctx, pin, state); err != nil {
		s.mu.Unlock()
		return models.PinOutcome{}, err
	}
	s.mu.Unlock()

	s.log.Infow("pin_state_changed", "pin", pin, "state", state, "by", "manual")
	out := models.PinOutcome{Pin: pin, State: state, Changed: true, SentToEsp: s.dispatch(pin, state)}

	if pin == autoLightPin {
		cfg, changed, err := s.cfg.DisableAutomation(ctx)
		if err != nil {
			return models.PinOutcome{}, err
		}
		if changed {
			s.log.Infow("automation_disabled_by_manual_override", "pin", pin)
			go s.relay.SendConfig(cfg)
		}
	}
	return out, nil
}

// States returns the canonical state of every known pin.
func (s *PinService) States(ctx context.Context) (map[string]int, error) {
	return s.pins.All(ctx)
}

// dispatch fires the relay without blocking the caller on delivery. The
// returned flag reports transport availability at dispatch time; delivery
// failures are only logged.
func (s *PinService) dispatch(pin string, state int) bool {
	gpio, ok := gpioNumber(pin)
	if !ok {
		s.log.Warnw("pin_has_no_gpio_mapping", "pin", pin)
		return false
	}
	available := s.relay.Available()
	go s.relay.SendPinCommand(gpio, state)
	return available
}

// gpioNumber resolves a logical pin name like "pin12" to the GPIO number the
// device expects.
func gpioNumber(pin string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(pin, "pin"))
	if err != nil {
		return 0, false
	}
	if gpio, ok := gpioMapping[n]; ok {
		return gpio, true
	}
	return n, true
}
