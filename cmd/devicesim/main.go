// devicesim impersonates the ESP8266: it posts randomized telemetry to the
// hub's /upload endpoint on the interval the hub replies with, and serves
// GET /control?pin=&state= so the hub's HTTP relay fallback has something to
// talk to.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"esphub/internal/logger"
)

func main() {
	hubURL := flag.String("hub", "http://localhost:8080", "hub base URL")
	listen := flag.String("listen", ":8266", "address for the simulated device's control server")
	flag.Parse()

	log := logger.Get(logger.InfoLevel)

	pins := make(map[int]int)
	mux := http.NewServeMux()
	mux.HandleFunc("/control", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var pin, state int
		if _, err := fmt.Sscan(q.Get("pin"), &pin); err != nil {
			http.Error(w, "Bad Request: 'pin' and 'state' parameters are required", http.StatusBadRequest)
			return
		}
		if _, err := fmt.Sscan(q.Get("state"), &state); err != nil || (state != 0 && state != 1) {
			http.Error(w, "Bad Request: 'pin' and 'state' parameters are required", http.StatusBadRequest)
			return
		}
		pins[pin] = state
		log.Infow("control_applied", "pin", pin, "state", state)
		_, _ = w.Write([]byte("OK"))
	})

	go func() {
		log.Infow("device control server listening", "addr", *listen)
		if err := http.ListenAndServe(*listen, mux); err != nil {
			log.Fatalw("control server failed", "err", err)
		}
	}()

	interval := 30 * time.Second
	client := &http.Client{Timeout: 10 * time.Second}
	for {
		interval = report(client, *hubURL, interval, log)
		time.Sleep(interval)
	}
}

// report posts one telemetry payload and returns the next interval, honoring
// uploadIntervalSeconds from the hub's response.
func report(client *http.Client, hubURL string, current time.Duration, log *logger.Logger) time.Duration {
	payload := map[string]any{
		"ip":                localIP(),
		"uptime_ms":         time.Now().UnixMilli(),
		"rssi_dbm":          -40 - rand.Intn(40),
		"device":            "esp8266_sim",
		"lux":               float64(rand.Intn(250) + 50),
		"temperature_aht_c": 20.0 + rand.Float64()*5.0,
		"humidity_aht_pct":  40.0 + rand.Float64()*20.0,
		"battery_v":         3.3 + rand.Float64()*0.9,
	}
	body, _ := json.Marshal(payload)

	resp, err := client.Post(hubURL+"/upload", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Errorw("upload_failed", "err", err)
		return current
	}
	defer resp.Body.Close()

	var reply struct {
		Status                string `json:"status"`
		UploadIntervalSeconds int    `json:"uploadIntervalSeconds"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&reply); err != nil {
		log.Warnw("upload_reply_unreadable", "err", err)
		return current
	}
	log.Infow("telemetry_sent", "lux", payload["lux"], "status", reply.Status)

	if reply.UploadIntervalSeconds > 0 {
		return time.Duration(reply.UploadIntervalSeconds) * time.Second
	}
	return current
}

func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
