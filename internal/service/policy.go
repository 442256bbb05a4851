package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"esphub/internal/config"
	"esphub/internal/models"
)

// autoLightPin is the output governed by the automation policy.
const autoLightPin = "pin12"

var timeOfDayRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// decide is the automation policy: it maps (config, record, now) to a desired
// pin state. ok is false when automation is disabled or the record carries no
// light level, in which case the actuator is left untouched.
func decide(cfg config.Config, rec models.TelemetryRecord, now time.Time, utcOffsetHours int) (state int, ok bool) {
	if !cfg.AutomationEnabled() {
		return 0, false
	}
	lux, present := numberField(rec.Payload, "lux")
	if !present {
		return 0, false
	}

	within := withinSchedule(now, cfg.AutoLightStartTime, cfg.AutoLightEndTime, utcOffsetHours)
	// boundary counts as light: lux == threshold does not turn the pin on
	dark := lux < cfg.LightThreshold

	var on bool
	switch {
	case cfg.EnableAutoLight && !cfg.EnableLightThreshold:
		on = within
	case !cfg.EnableAutoLight && cfg.EnableLightThreshold:
		on = dark
	default:
		on = within && dark
	}
	if on {
		return 1, true
	}
	return 0, true
}

// withinSchedule tests now against [start, end) in a fixed UTC offset,
// wrapping across midnight when start > end. Malformed bounds disable the
// schedule restriction rather than the automation.
func withinSchedule(now time.Time, start, end string, utcOffsetHours int) bool {
	if !timeOfDayRe.MatchString(start) || !timeOfDayRe.MatchString(end) {
		return true
	}

	local := now.UTC().Add(time.Duration(utcOffsetHours) * time.Hour)
	nowMin := local.Hour()*60 + local.Minute()
	startMin := minutesOfDay(start)
	endMin := minutesOfDay(end)

	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func minutesOfDay(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

// numberField extracts an optional numeric payload field. JSON decoding
// yields float64; other numeric kinds come from tests and future decoders.
func numberField(payload map[string]any, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
