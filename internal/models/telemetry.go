package models

import "time"

// Source identifies the transport a telemetry report arrived on.
type Source string

const (
	SourceHTTP Source = "HTTP"
	SourceMQTT Source = "MQTT"
)

// TelemetryRecord is one ingested sensor report. The payload is an open
// mapping: device firmware adds and removes fields over time, so nothing
// downstream may assume a field is present.
type TelemetryRecord struct {
	ID         string         `json:"id"`
	ReceivedAt time.Time      `json:"received_at"`
	Source     Source         `json:"source"`
	Payload    map[string]any `json:"payload"`
}
