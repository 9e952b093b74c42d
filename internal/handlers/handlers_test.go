package handlers

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

type fakePublisher struct {
	sent []published
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	f.sent = append(f.sent, published{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakePublisher) find(topic string) (published, bool) {
	for _, p := range f.sent {
		if p.topic == topic {
			return p, true
		}
	}
	return published{}, false
}

func newTestHandlers(t *testing.T) (*Handlers, *fakePublisher) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	pub := &fakePublisher{}
	return New(s, pub, nil), pub
}

func decodeJSON(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

// S1: announce/esp_salon/sensor/3 {"name":"lampara","location":"salon"}
func TestAnnounce_S1(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Kind: topic.Announce, Device: "esp_salon", Type: topic.Sensor, ID: 3}
	raw := payload.Raw{"name": "lampara", "location": "salon"}

	if err := h.Announce(ctx, key, raw); err != nil {
		t.Fatal(err)
	}

	sensors, err := h.Store.SelectSensors(ctx, "esp_salon", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 1 || sensors[0].Name != "lampara" || sensors[0].Location != "salon" {
		t.Fatalf("sensors = %+v", sensors)
	}

	p, ok := pub.find("system/notify/esp_salon/announce")
	if !ok {
		t.Fatal("expected notify publish")
	}
	body := decodeJSON(t, p.payload)
	if body["status"] != "registered" {
		t.Errorf("status = %v, want registered", body["status"])
	}
}

func TestAnnounce_IdempotentUnderRepeats(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_salon", Type: topic.Sensor, ID: 3}
	raw := payload.Raw{"name": "lampara", "location": "salon"}

	for i := 0; i < 3; i++ {
		if err := h.Announce(ctx, key, raw); err != nil {
			t.Fatal(err)
		}
	}
	sensors, err := h.Store.SelectSensors(ctx, "esp_salon", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 1 {
		t.Fatalf("len(sensors) = %d, want 1", len(sensors))
	}
}

func TestUpdate_ActuatorTransientStateNotPersisted(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_puerta", Type: topic.Actuator, ID: 0}

	if err := h.Update(ctx, key, payload.Raw{"state": "opening"}); err != nil {
		t.Fatal(err)
	}
	act, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: "esp_puerta", ID: 0})
	if err != nil {
		t.Fatal(err)
	}
	if act.State != nil {
		t.Errorf("State = %v, want nil", *act.State)
	}

	p, ok := pub.find("system/notify/esp_puerta/update")
	if !ok {
		t.Fatal("expected notify publish")
	}
	body := decodeJSON(t, p.payload)
	if body["state_text"] != "opening" {
		t.Errorf("state_text = %v, want opening", body["state_text"])
	}
}

// S3: "closed, opening, opening, open" must persist as 0, 0, 0, 1 — a
// transient report must never overwrite a prior terminal state with
// NULL.
func TestUpdate_ActuatorTransientNeverOverwritesPriorTerminalState(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_puerta", Type: topic.Actuator, ID: 0}

	reports := []string{"closed", "opening", "opening", "open"}
	want := []any{0, 0, 0, 1}

	for i, state := range reports {
		if err := h.Update(ctx, key, payload.Raw{"state": state}); err != nil {
			t.Fatalf("report %d (%q): %v", i, state, err)
		}
		act, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: "esp_puerta", ID: 0})
		if err != nil {
			t.Fatal(err)
		}
		if act.State == nil {
			t.Fatalf("after report %d (%q): State = nil, want %v", i, state, want[i])
		}
		if *act.State != want[i] {
			t.Errorf("after report %d (%q): State = %d, want %v", i, state, *act.State, want[i])
		}
	}
}

// S2: preload S1, then system/get/intent-service {"device":"esp_salon","type":"sensor","id":3}
func TestSystemGet_S2(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	if err := h.Announce(ctx, topic.Key{Device: "esp_salon", Type: topic.Sensor, ID: 3},
		payload.Raw{"name": "lampara", "location": "salon"}); err != nil {
		t.Fatal(err)
	}

	err := h.SystemGet(ctx, "intent-service", payload.Raw{"device": "esp_salon", "type": "sensor", "id": float64(3)})
	if err != nil {
		t.Fatal(err)
	}

	p, ok := pub.find("get/esp_salon/sensor/3")
	if !ok {
		t.Fatal("expected forward publish on get/esp_salon/sensor/3")
	}
	body := decodeJSON(t, p.payload)
	if body["requester"] != "intent-service" {
		t.Errorf("requester = %v, want intent-service", body["requester"])
	}
}

func TestSystemGet_ComponentNotFound(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()

	err := h.SystemGet(ctx, "intent-service", payload.Raw{"device": "unknown", "type": "actuator", "id": float64(42)})
	if err == nil {
		t.Fatal("want ErrComponentNotFound")
	}
	if _, ok := pub.find("get/unknown/actuator/42"); ok {
		t.Error("must not forward a get for a missing component")
	}
	p, ok := pub.find("system/response/intent-service/actuator/unknown/42")
	if !ok {
		t.Fatal("expected error response publish")
	}
	body := decodeJSON(t, p.payload)
	if body["error"] != "component_not_found" {
		t.Errorf("error = %v, want component_not_found", body["error"])
	}
}

// S6: system/set/intent-service on an unknown component.
func TestSystemSet_S6_ComponentNotFound(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()

	err := h.SystemSet(ctx, "intent-service",
		payload.Raw{"device": "unknown", "type": "actuator", "id": float64(42), "state": true})
	if err == nil {
		t.Fatal("want ErrComponentNotFound")
	}
	if _, ok := pub.find("set/unknown/actuator/42"); ok {
		t.Error("must not forward a set for a missing component")
	}
	p, ok := pub.find("system/response/intent-service/actuator/unknown/42")
	if !ok {
		t.Fatal("expected error response publish")
	}
	body := decodeJSON(t, p.payload)
	if body["device"] != "unknown" || body["id"] != float64(42) {
		t.Errorf("got %+v", body)
	}
}

// S4-adjacent: system/set for a known actuator, simple on/off shape.
func TestSystemSet_ActuatorSimple(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	if err := h.Announce(ctx, topic.Key{Device: "esp_salon", Type: topic.Actuator, ID: 1},
		payload.Raw{"name": "lampara", "location": "salon"}); err != nil {
		t.Fatal(err)
	}

	err := h.SystemSet(ctx, "intent-service",
		payload.Raw{"device": "esp_salon", "type": "actuator", "id": float64(1), "state": true})
	if err != nil {
		t.Fatal(err)
	}

	p, ok := pub.find("set/esp_salon/actuator/1")
	if !ok {
		t.Fatal("expected forward publish")
	}
	body := decodeJSON(t, p.payload)
	if body["requester"] != "intent-service" || body["state"] != true {
		t.Errorf("got %+v", body)
	}

	act, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: "esp_salon", ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if act.State == nil || *act.State != 1 {
		t.Errorf("state = %v, want 1", act.State)
	}
}

// system/set motion commands must not persist CLOSE as state 1 —
// OPEN and CLOSE project to different terminal states.
func TestSystemSet_MotionOpenAndCloseProjectDistinctStates(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()
	if err := h.Announce(ctx, topic.Key{Device: "esp_garage", Type: topic.Actuator, ID: 2},
		payload.Raw{"name": "puerta", "location": "garage"}); err != nil {
		t.Fatal(err)
	}

	if err := h.SystemSet(ctx, "intent-service",
		payload.Raw{"device": "esp_garage", "type": "actuator", "id": float64(2), "command": "OPEN"}); err != nil {
		t.Fatal(err)
	}
	act, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: "esp_garage", ID: 2})
	if err != nil {
		t.Fatal(err)
	}
	if act.State == nil || *act.State != 1 {
		t.Fatalf("after OPEN: state = %v, want 1", act.State)
	}

	if err := h.SystemSet(ctx, "intent-service",
		payload.Raw{"device": "esp_garage", "type": "actuator", "id": float64(2), "command": "CLOSE"}); err != nil {
		t.Fatal(err)
	}
	act, err = h.Store.GetActuator(ctx, store.ActuatorKey{Device: "esp_garage", ID: 2})
	if err != nil {
		t.Fatal(err)
	}
	if act.State == nil || *act.State != 0 {
		t.Fatalf("after CLOSE: state = %v, want 0", act.State)
	}
}

// S5: three alerts for the same component; only the last severity
// survives and exactly one row exists.
func TestAlert_S5_OneRowLatestWins(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_salon", Type: topic.Sensor, ID: 3}

	for _, sev := range []string{"low", "high", "medium"} {
		if err := h.Alert(ctx, key, payload.Raw{"severity": sev, "message": "m"}); err != nil {
			t.Fatal(err)
		}
	}

	alerts, err := h.Store.SelectAlerts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != "medium" {
		t.Errorf("severity = %q, want medium", alerts[0].Severity)
	}

	count := 0
	for _, p := range pub.sent {
		if p.topic == "system/notify/alert" {
			count++
		}
	}
	if count != 3 {
		t.Errorf("notify count = %d, want 3", count)
	}
}

// response/esp_puerta/actuator/0 with requester=intent-service;
// verify correlated reply + telegram tap, and requester stripped.
func TestResponse_CorrelationAndTap(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_puerta", Type: topic.Actuator, ID: 0}

	raw := payload.Raw{"state": true, "requester": "intent-service"}
	if err := h.Response(ctx, key, raw); err != nil {
		t.Fatal(err)
	}

	correlated, ok := pub.find("system/response/intent-service/actuator/esp_puerta/0")
	if !ok {
		t.Fatal("expected correlated reply")
	}
	body := decodeJSON(t, correlated.payload)
	if _, present := body["requester"]; present {
		t.Error("requester key must be stripped from the republished payload")
	}

	if _, ok := pub.find("system/response/telegram-service/actuator/esp_puerta/0"); !ok {
		t.Fatal("expected telegram-service tap publish")
	}
}

func TestResponse_NoDoubleTapWhenRequesterIsTelegram(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()
	key := topic.Key{Device: "esp_puerta", Type: topic.Actuator, ID: 0}

	raw := payload.Raw{"state": true, "requester": telegramService}
	if err := h.Response(ctx, key, raw); err != nil {
		t.Fatal(err)
	}

	count := 0
	for _, p := range pub.sent {
		if p.topic == "system/response/telegram-service/actuator/esp_puerta/0" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("telegram-service publish count = %d, want exactly 1 (not duplicated)", count)
	}
}

func TestSystemSelect_EmptySentinel(t *testing.T) {
	h, pub := newTestHandlers(t)
	ctx := context.Background()

	if err := h.SystemSelect(ctx, "telegram-service", payload.Raw{"request": "devices"}); err != nil {
		t.Fatal(err)
	}
	p, ok := pub.find("system/response/telegram-service/devices/empty")
	if !ok {
		t.Fatal("expected empty sentinel publish")
	}
	body := decodeJSON(t, p.payload)
	if body["status"] != "no_results" {
		t.Errorf("status = %v, want no_results", body["status"])
	}
}
