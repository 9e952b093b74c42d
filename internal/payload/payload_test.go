package payload

import "testing"

func decode(t *testing.T, s string) Raw {
	t.Helper()
	r, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return r
}

func TestParseAnnounce(t *testing.T) {
	r := decode(t, `{"name":"lampara","location":"salon"}`)
	a, err := ParseAnnounce(r)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "lampara" || a.Location != "salon" {
		t.Errorf("got %+v", a)
	}

	if _, err := ParseAnnounce(decode(t, `{"name":"lampara"}`)); err == nil {
		t.Error("want error for missing location")
	}
}

func TestParseSensorUpdate_UnitFallback(t *testing.T) {
	u, err := ParseSensorUpdate(decode(t, `{"value":"23.4","units":"C"}`))
	if err != nil {
		t.Fatal(err)
	}
	if u.Value != "23.4" || u.Unit != "C" {
		t.Errorf("got %+v", u)
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		raw  any
		want *int
	}{
		{true, intp(1)},
		{"on", intp(1)},
		{"1", intp(1)},
		{"abierto", intp(1)},
		{false, intp(0)},
		{"off", intp(0)},
		{"cerrado", intp(0)},
		{"opening", nil},
		{"stop", nil},
		{"OPEN:50", intp(1)},
		{"CLOSE:30", intp(0)},
		{"garbage", nil},
	}
	for _, tt := range tests {
		got := NormalizeState(tt.raw)
		if (got.State == nil) != (tt.want == nil) {
			t.Errorf("NormalizeState(%v) = %v, want %v", tt.raw, got.State, tt.want)
			continue
		}
		if got.State != nil && *got.State != *tt.want {
			t.Errorf("NormalizeState(%v) = %d, want %d", tt.raw, *got.State, *tt.want)
		}
	}
}

func intp(n int) *int { return &n }

func TestParseAlert_Defaults(t *testing.T) {
	a := ParseAlert(decode(t, `{}`))
	if a.Status != DefaultAlertStatus || a.Severity != DefaultAlertSeverity || a.Message != DefaultAlertMessage {
		t.Errorf("got %+v", a)
	}
}

func TestParseAlert_Overrides(t *testing.T) {
	a := ParseAlert(decode(t, `{"status":"OK","severity":"high","message":"overheating","code":"E1"}`))
	if a.Status != "OK" || a.Severity != "high" || a.Message != "overheating" || a.Code != "E1" {
		t.Errorf("got %+v", a)
	}
}

func TestExtractRequester(t *testing.T) {
	r := decode(t, `{"value":1,"requester":"intent-service"}`)
	req := ExtractRequester(r)
	if req != "intent-service" {
		t.Errorf("requester = %q, want intent-service", req)
	}
	if _, ok := r["requester"]; ok {
		t.Error("requester key not removed")
	}
}

func TestParseComponentRef(t *testing.T) {
	ref, err := ParseComponentRef(decode(t, `{"device":"esp_salon","type":"sensor","id":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if ref.Device != "esp_salon" || ref.Type != "sensor" || ref.ID != 3 {
		t.Errorf("got %+v", ref)
	}

	if _, err := ParseComponentRef(decode(t, `{"device":"esp_salon","type":"bogus","id":3}`)); err == nil {
		t.Error("want error for invalid type")
	}
}

func TestParseSystemSet_ActuatorSimple(t *testing.T) {
	s, err := ParseSystemSet(decode(t, `{"device":"esp_salon","type":"actuator","id":1,"state":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if !s.HasState || !s.State || s.HasCommand || s.HasEnable {
		t.Errorf("got %+v", s)
	}
}

func TestParseSystemSet_ActuatorMotion(t *testing.T) {
	s, err := ParseSystemSet(decode(t, `{"device":"esp_puerta","type":"actuator","id":0,"command":"open","speed":150}`))
	if err != nil {
		t.Fatal(err)
	}
	if !s.HasCommand || s.Command != "OPEN" || s.Speed != 100 {
		t.Errorf("got %+v, want speed clamped to 100", s)
	}
}

func TestParseSystemSet_Sensor(t *testing.T) {
	s, err := ParseSystemSet(decode(t, `{"device":"esp_salon","type":"sensor","id":3,"enable":false}`))
	if err != nil {
		t.Fatal(err)
	}
	if !s.HasEnable || s.Enable {
		t.Errorf("got %+v", s)
	}
}

func TestParseSystemSet_InvalidCommand(t *testing.T) {
	if _, err := ParseSystemSet(decode(t, `{"device":"d","type":"actuator","id":0,"command":"FLY"}`)); err == nil {
		t.Error("want error for invalid command")
	}
}

func TestParseSystemSelect_Defaults(t *testing.T) {
	s, err := ParseSystemSelect(decode(t, `{"request":"alerts"}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Limit != 10 {
		t.Errorf("Limit = %d, want default 10", s.Limit)
	}
}

func TestParseSystemSelect_LimitZeroMeansUnlimited(t *testing.T) {
	s, err := ParseSystemSelect(decode(t, `{"request":"alerts","limit":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Limit != 0 {
		t.Errorf("Limit = %d, want 0", s.Limit)
	}
}

func TestParseSystemSelect_InvalidRequest(t *testing.T) {
	if _, err := ParseSystemSelect(decode(t, `{"request":"bogus"}`)); err == nil {
		t.Error("want error")
	}
}
