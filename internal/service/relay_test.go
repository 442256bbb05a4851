package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"esphub/internal/config"
)

type fakeSession struct {
	mu        sync.Mutex
	connected bool
	pinErr    error
	cfgErr    error
	pinCalls  [][2]int
	cfgBodies [][]byte
}

func (f *fakeSession) Configure(cfg config.MQTTConfig) error { return nil }

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) PublishPinCommand(pin, state int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinErr != nil {
		return f.pinErr
	}
	f.pinCalls = append(f.pinCalls, [2]int{pin, state})
	return nil
}

func (f *fakeSession) PublishConfig(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfgErr != nil {
		return f.cfgErr
	}
	f.cfgBodies = append(f.cfgBodies, append([]byte(nil), raw...))
	return nil
}

func (f *fakeSession) publishedPins() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.pinCalls...)
}

var errTest = errors.New("broker publish refused")

func newTestRelay(session *fakeSession) *DeviceRelay {
	return NewDeviceRelay(session, &http.Client{Timeout: time.Second}, testLogger())
}

// hostPort strips the scheme so the address looks like what a device reports.
func hostPort(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestSendPinCommand_PrefersMQTTOverHTTP(t *testing.T) {
	var httpHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpHits++
	}))
	defer srv.Close()

	session := &fakeSession{connected: true}
	relay := newTestRelay(session)
	relay.NoteDeviceAddress(hostPort(srv))

	if !relay.SendPinCommand(12, 1) {
		t.Fatalf("expected delivery over mqtt")
	}
	calls := session.publishedPins()
	if len(calls) != 1 || calls[0] != [2]int{12, 1} {
		t.Fatalf("expected one mqtt publish {12,1}, got %v", calls)
	}
	if httpHits != 0 {
		t.Fatalf("http fallback must not fire while the session is live")
	}
}

func TestSendPinCommand_MQTTPublishFailureIsFalse(t *testing.T) {
	session := &fakeSession{connected: true, pinErr: errTest}
	relay := newTestRelay(session)

	if relay.SendPinCommand(12, 1) {
		t.Fatalf("publish failure must report false")
	}
}

func TestSendPinCommand_HTTPFallbackShape(t *testing.T) {
	var (
		gotPath  string
		gotQuery map[string][]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	relay := newTestRelay(&fakeSession{})
	relay.NoteDeviceAddress(hostPort(srv))

	if !relay.SendPinCommand(13, 0) {
		t.Fatalf("expected delivery over http fallback")
	}
	if gotPath != "/control" {
		t.Fatalf("expected /control, got %q", gotPath)
	}
	if len(gotQuery["pin"]) != 1 || gotQuery["pin"][0] != "13" {
		t.Fatalf("expected pin=13, got %v", gotQuery["pin"])
	}
	if len(gotQuery["state"]) != 1 || gotQuery["state"][0] != "0" {
		t.Fatalf("expected state=0, got %v", gotQuery["state"])
	}
}

func TestSendPinCommand_HTTPNon200IsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	relay := newTestRelay(&fakeSession{})
	relay.NoteDeviceAddress(hostPort(srv))

	if relay.SendPinCommand(12, 1) {
		t.Fatalf("device rejection must report false")
	}
}

func TestSendPinCommand_DeadDeviceIsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := hostPort(srv)
	srv.Close()

	relay := newTestRelay(&fakeSession{})
	relay.NoteDeviceAddress(addr)

	if relay.SendPinCommand(12, 1) {
		t.Fatalf("unreachable device must report false")
	}
}

func TestSendPinCommand_NoTransportIsFalse(t *testing.T) {
	relay := newTestRelay(&fakeSession{})

	if relay.SendPinCommand(12, 1) {
		t.Fatalf("no session and no address must report false")
	}
	if relay.Available() {
		t.Fatalf("relay must report unavailable")
	}
}

func TestNoteDeviceAddress_IgnoresEmptyAndFlipsAvailability(t *testing.T) {
	relay := newTestRelay(&fakeSession{})

	relay.NoteDeviceAddress("")
	if relay.DeviceAddress() != "" || relay.Available() {
		t.Fatalf("empty address must not enable the fallback")
	}

	relay.NoteDeviceAddress("192.168.1.57")
	if relay.DeviceAddress() != "192.168.1.57" || !relay.Available() {
		t.Fatalf("learned address must enable the fallback")
	}
}

func TestSendConfig_MQTTOnly(t *testing.T) {
	relay := newTestRelay(&fakeSession{})
	if relay.SendConfig(config.Defaults()) {
		t.Fatalf("config must not be deliverable without a session")
	}

	session := &fakeSession{connected: true}
	relay = newTestRelay(session)
	cfg := config.Defaults()
	cfg.MQTT.Password = "secret"
	if !relay.SendConfig(cfg) {
		t.Fatalf("expected config publish over live session")
	}

	session.mu.Lock()
	bodies := session.cfgBodies
	session.mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected one publish, got %d", len(bodies))
	}
	var view map[string]any
	if err := json.Unmarshal(bodies[0], &view); err != nil {
		t.Fatalf("published config unreadable: %v", err)
	}
	if _, ok := view["mqtt"]; ok {
		t.Fatalf("broker credentials must not reach the device: %v", view)
	}
	if view["lightThreshold"] != 40.0 {
		t.Fatalf("device view must carry the automation settings, got %v", view)
	}
}

func TestSendConfig_PublishFailureIsFalse(t *testing.T) {
	relay := newTestRelay(&fakeSession{connected: true, cfgErr: errTest})
	if relay.SendConfig(config.Defaults()) {
		t.Fatalf("publish failure must report false")
	}
}
