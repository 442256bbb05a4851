package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"esphub/internal/config"
	"esphub/internal/events"
	"esphub/internal/models"
)

type fakeTelemetryRepo struct {
	mu        sync.Mutex
	appended  []models.TelemetryRecord
	appendErr error
}

func (f *fakeTelemetryRepo) Append(ctx context.Context, rec models.TelemetryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeTelemetryRepo) Latest(ctx context.Context) (*models.TelemetryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.appended) == 0 {
		return nil, nil
	}
	rec := f.appended[len(f.appended)-1]
	return &rec, nil
}

func (f *fakeTelemetryRepo) List(ctx context.Context) ([]models.TelemetryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TelemetryRecord(nil), f.appended...), nil
}

func (f *fakeTelemetryRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }
func (f *fakeTelemetryRepo) DeleteAll(ctx context.Context) (int64, error)        { return 0, nil }

type fakeApplier struct {
	mu    sync.Mutex
	calls [][2]any // pin, state
	err   error
}

func (f *fakeApplier) ApplyDesired(ctx context.Context, pin string, state int) (models.PinOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.PinOutcome{}, f.err
	}
	f.calls = append(f.calls, [2]any{pin, state})
	return models.PinOutcome{Pin: pin, State: state, Changed: true, SentToEsp: true}, nil
}

func (f *fakeApplier) applied() [][2]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]any(nil), f.calls...)
}

func newIngestFixture(t *testing.T, cfg config.Config) (*IngestService, *fakeTelemetryRepo, *fakeApplier, *fakeRelay, *events.Hub) {
	t.Helper()
	trepo := &fakeTelemetryRepo{}
	applier := &fakeApplier{}
	relay := newFakeRelay(true, true)
	store, _ := newTestConfigStore(t, cfg)
	hub := events.NewHub(testLogger())

	svc := NewIngestService(trepo, store, applier, hub, relay, testLogger(), 0)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, trepo, applier, relay, hub
}

func TestProcess_MalformedPayloadIsDropped(t *testing.T) {
	svc, trepo, applier, _, _ := newIngestFixture(t, config.Defaults())

	for _, body := range []string{`"just a string"`, `[1,2,3]`, `{broken`, ``} {
		if _, err := svc.Process(context.Background(), []byte(body), models.SourceHTTP); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("body %q: expected ErrMalformedPayload, got %v", body, err)
		}
	}
	if len(trepo.appended) != 0 {
		t.Fatalf("malformed reports must not create records")
	}
	if len(applier.applied()) != 0 {
		t.Fatalf("malformed reports must not actuate")
	}
}

func TestProcess_NormalizesAndPersists(t *testing.T) {
	svc, trepo, _, _, _ := newIngestFixture(t, config.Defaults())

	rec, err := svc.Process(context.Background(), []byte(`{"lux": 120, "device": "esp8266_12E"}`), models.SourceMQTT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == "" || rec.ReceivedAt.IsZero() {
		t.Fatalf("expected assigned identity and timestamp, got %+v", rec)
	}
	if rec.Source != models.SourceMQTT {
		t.Fatalf("expected MQTT source, got %s", rec.Source)
	}
	if rec.Payload["device"] != "esp8266_12E" {
		t.Fatalf("unknown fields must pass through opaquely")
	}
	if len(trepo.appended) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(trepo.appended))
	}
}

func TestProcess_NoDeduplication(t *testing.T) {
	svc, trepo, _, _, _ := newIngestFixture(t, config.Defaults())

	body := []byte(`{"lux": 120}`)
	a, _ := svc.Process(context.Background(), body, models.SourceHTTP)
	b, _ := svc.Process(context.Background(), body, models.SourceHTTP)
	if a.ID == b.ID {
		t.Fatalf("identical payloads must still produce distinct records")
	}
	if len(trepo.appended) != 2 {
		t.Fatalf("expected two records, got %d", len(trepo.appended))
	}
}

func TestProcess_PublishesNewEvent(t *testing.T) {
	svc, _, _, _, hub := newIngestFixture(t, config.Defaults())

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	if _, err := svc.Process(context.Background(), []byte(`{"lux": 120}`), models.SourceHTTP); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Type != events.TypeNew {
			t.Fatalf("expected %q event, got %q", events.TypeNew, ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a new-telemetry event")
	}
}

func TestProcess_TracksDeviceAddressFromHTTPOnly(t *testing.T) {
	svc, _, _, relay, _ := newIngestFixture(t, config.Defaults())

	if _, err := svc.Process(context.Background(), []byte(`{"ip": "192.168.1.57"}`), models.SourceMQTT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relay.DeviceAddress() != "" {
		t.Fatalf("MQTT reports must not update the fallback address")
	}

	if _, err := svc.Process(context.Background(), []byte(`{"ip": "192.168.1.57"}`), models.SourceHTTP); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relay.DeviceAddress() != "192.168.1.57" {
		t.Fatalf("expected fallback address learned from HTTP report")
	}
}

func TestProcess_DarkReportDrivesAutomationPin(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableLightThreshold = true
	cfg.LightThreshold = 40
	svc, _, applier, _, _ := newIngestFixture(t, cfg)

	if _, err := svc.Process(context.Background(), []byte(`{"lux": 10}`), models.SourceHTTP); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := applier.applied()
	if len(calls) != 1 || calls[0][0] != "pin12" || calls[0][1] != 1 {
		t.Fatalf("expected pin12 driven to 1, got %v", calls)
	}
}

func TestProcess_MissingLuxLeavesActuatorUntouched(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableLightThreshold = true
	svc, trepo, applier, _, _ := newIngestFixture(t, cfg)

	if _, err := svc.Process(context.Background(), []byte(`{"temperature_aht_c": 21.0}`), models.SourceHTTP); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applier.applied()) != 0 {
		t.Fatalf("records without a light level must skip automation")
	}
	if len(trepo.appended) != 1 {
		t.Fatalf("the record itself must still be persisted")
	}
}

func TestProcess_AppendFailureHaltsPipeline(t *testing.T) {
	svc, trepo, applier, _, hub := newIngestFixture(t, config.Defaults())
	trepo.appendErr = errors.New("disk full")

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	if _, err := svc.Process(context.Background(), []byte(`{"lux": 10}`), models.SourceHTTP); err == nil {
		t.Fatalf("expected store failure to surface")
	}
	if len(applier.applied()) != 0 {
		t.Fatalf("pipeline must halt before actuation on store failure")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("no event should be published for a failed append, got %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
