package config

import "encoding/json"

// MQTTConfig is the broker session settings, merged independently of the rest
// of the config on partial updates.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"brokerUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	BaseTopic string `json:"baseTopic"`
}

type WifiNetwork struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// Config is the hub configuration snapshot: the automation policy plus device
// provisioning fields the dashboard edits. JSON keys match what the device
// firmware expects on its retained config topic.
type Config struct {
	EnableAutoLight       bool          `json:"enableAutoLight"`
	EnableLightThreshold  bool          `json:"enableLightThreshold"`
	LightThreshold        float64       `json:"lightThreshold"`
	UploadIntervalSeconds int           `json:"uploadIntervalSeconds"`
	AutoLightStartTime    string        `json:"autoLightStartTime"`
	AutoLightEndTime      string        `json:"autoLightEndTime"`
	LastSavedLocalTime    *string       `json:"lastSavedLocalTime"`
	Wifi                  []WifiNetwork `json:"wifi"`
	SendAddresses         []string      `json:"sendAddresses"`
	DeviceName            string        `json:"deviceName"`
	MQTT                  MQTTConfig    `json:"mqtt"`
}

// Defaults is the baseline every persisted or submitted snapshot is merged
// over, so fields added in later versions get deterministic fallback values.
func Defaults() Config {
	return Config{
		EnableAutoLight:       false,
		EnableLightThreshold:  false,
		LightThreshold:        40,
		UploadIntervalSeconds: 30,
		AutoLightStartTime:    "07:00",
		AutoLightEndTime:      "22:00",
		Wifi:                  []WifiNetwork{},
		SendAddresses:         []string{},
		MQTT: MQTTConfig{
			Enabled:   false,
			BrokerURL: "mqtts://mqtt-dashboard.com:8883",
			BaseTopic: "esp_device",
		},
	}
}

// DeviceView is the config as published to the device's retained control
// topic: everything except the broker credentials.
func (c Config) DeviceView() map[string]any {
	b, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	delete(m, "mqtt")
	return m
}

// AutomationEnabled reports whether any automation flag is set.
func (c Config) AutomationEnabled() bool {
	return c.EnableAutoLight || c.EnableLightThreshold
}
