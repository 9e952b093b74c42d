package main

import (
	"encoding/json"
	"testing"

	"github.com/hearth-iot/hearth/internal/intent"
	"github.com/hearth-iot/hearth/internal/payload"
)

func TestSelectTableFromBody(t *testing.T) {
	cases := []struct {
		name string
		body payload.Raw
		want string
	}{
		{"device row", payload.Raw{"device_name": "esp_salon"}, "devices"},
		{"sensor row", payload.Raw{"device": "esp_salon", "id": float64(3), "type": "sensor"}, "sensors"},
		{"actuator row", payload.Raw{"device": "esp_salon", "id": float64(1), "type": "actuator"}, "actuators"},
		{"unrecognized row", payload.Raw{"foo": "bar"}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := selectTableFromBody(c.body); got != c.want {
				t.Errorf("selectTableFromBody(%v) = %q, want %q", c.body, got, c.want)
			}
		})
	}
}

func TestBuildSetPayload_ActuatorSimple(t *testing.T) {
	state := true
	cmd := &intent.Command{Device: "esp_salon", Type: "actuator", ID: 1, State: &state}
	data, err := buildSetPayload(cmd, "intent-service")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["device"] != "esp_salon" || m["state"] != true {
		t.Errorf("got %+v", m)
	}
	if _, present := m["command"]; present {
		t.Error("command key must be absent for a simple state command")
	}
}

func TestBuildSetPayload_MotionWithSpeed(t *testing.T) {
	speed := 100
	cmd := &intent.Command{Device: "esp_garage", Type: "actuator", ID: 2, Command: "OPEN", Speed: &speed}
	data, err := buildSetPayload(cmd, "intent-service")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["command"] != "OPEN" || m["speed"] != float64(100) {
		t.Errorf("got %+v", m)
	}
}
