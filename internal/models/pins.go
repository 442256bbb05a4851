package models

import "time"

// PinState is the canonical state of one controllable output pin.
type PinState struct {
	Pin       string    `json:"pin"`
	State     int       `json:"state"` // 0 = off, 1 = on
	UpdatedAt time.Time `json:"updated_at"`
}

// PinOutcome reports the result of a pin command. SentToEsp reflects whether
// a delivery transport was available when the command was dispatched, not
// whether the device acknowledged it; the persisted state is authoritative
// either way.
type PinOutcome struct {
	Pin       string `json:"pin"`
	State     int    `json:"state"`
	Changed   bool   `json:"changed"`
	SentToEsp bool   `json:"sentToEsp"`
}
