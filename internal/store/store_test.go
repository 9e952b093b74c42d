package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertDevice_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.UpsertDevice(ctx, "esp_salon"); err != nil {
			t.Fatalf("UpsertDevice() error: %v", err)
		}
	}

	devices, err := s.SelectDevices(ctx)
	if err != nil {
		t.Fatalf("SelectDevices() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
}

func TestUpsertSensor_PreservesValueOnAnnounce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := SensorKey{Device: "esp_salon", ID: 3}
	if err := s.UpsertDevice(ctx, key.Device); err != nil {
		t.Fatal(err)
	}

	value := "23.4"
	unit := "C"
	if err := s.UpsertSensor(ctx, key, SensorFields{Value: &value, Unit: &unit}); err != nil {
		t.Fatal(err)
	}

	// Announce-style upsert: only name/location supplied.
	name := "lampara"
	location := "salon"
	if err := s.UpsertSensor(ctx, key, SensorFields{Name: &name, Location: &location}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSensor(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("GetSensor() = nil")
	}
	if got.Name != name || got.Location != location {
		t.Errorf("name/location = %q/%q, want %q/%q", got.Name, got.Location, name, location)
	}
	if got.Value == nil || *got.Value != value {
		t.Errorf("value = %v, want preserved %q", got.Value, value)
	}
}

func TestUpsertActuator_TransientStateNotPersisted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := ActuatorKey{Device: "esp_puerta", ID: 0}
	if err := s.UpsertDevice(ctx, key.Device); err != nil {
		t.Fatal(err)
	}

	closed := 0
	if err := s.UpsertActuator(ctx, key, ActuatorFields{HasState: true, State: &closed}); err != nil {
		t.Fatal(err)
	}

	// "opening" is transient: update handler calls with HasState=false.
	if err := s.UpsertActuator(ctx, key, ActuatorFields{HasState: false}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetActuator(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got.State == nil || *got.State != 0 {
		t.Errorf("State = %v, want 0 preserved after transient report", got.State)
	}

	open := 1
	if err := s.UpsertActuator(ctx, key, ActuatorFields{HasState: true, State: &open}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetActuator(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got.State == nil || *got.State != 1 {
		t.Errorf("State = %v, want 1", got.State)
	}
}

func TestUpsertAlert_OneRowPerComponent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := AlertKey{Device: "esp_salon", ComponentType: "sensor", ComponentID: 3}
	if err := s.UpsertDevice(ctx, key.Device); err != nil {
		t.Fatal(err)
	}

	severities := []string{"low", "high", "medium"}
	for _, sev := range severities {
		if err := s.UpsertAlert(ctx, key, AlertFields{Severity: sev, Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	alerts, err := s.SelectAlerts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != "medium" {
		t.Errorf("Severity = %q, want medium (the last one received)", alerts[0].Severity)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"low", "low"},
		{"medium", "medium"},
		{"high", "high"},
		{"urgent", "medium"},
		{"", "medium"},
	}
	for _, tt := range tests {
		if got := NormalizeSeverity(tt.in); got != tt.want {
			t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectSensors_FilterByDeviceAndID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, dev := range []string{"esp_a", "esp_b"} {
		if err := s.UpsertDevice(ctx, dev); err != nil {
			t.Fatal(err)
		}
		for id := 0; id < 2; id++ {
			if err := s.UpsertSensor(ctx, SensorKey{Device: dev, ID: id}, SensorFields{}); err != nil {
				t.Fatal(err)
			}
		}
	}

	all, err := s.SelectSensors(ctx, "", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(all))
	}

	filtered, err := s.SelectSensors(ctx, "esp_a", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("len(filtered) = %d, want 2", len(filtered))
	}

	one, err := s.SelectSensors(ctx, "esp_a", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].ID != 1 {
		t.Fatalf("one = %+v, want single sensor id 1", one)
	}
}
