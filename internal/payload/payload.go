// Package payload decodes and validates the duck-typed JSON message
// bodies the router exchanges with devices and services. Payloads are
// not modeled as a strict discriminated union on the wire (devices and
// the original service fleet send loosely-typed JSON) — each Parse*
// function accepts a raw map and extracts/normalizes only the fields
// it needs, tolerating the historical field-name variants
// (`unit`/`units`, `enable`/`enabled`) documented in spec.md §3.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Raw is a loosely-typed decoded JSON object, the common entry point
// for every Parse* function below.
type Raw map[string]any

func Decode(data []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return r, nil
}

func (r Raw) str(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// strFallback returns the first present string value among keys, the
// historical-field-name-variant pattern used throughout the original
// handlers (e.g. "unit" falling back to "units").
func (r Raw) strFallback(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := r.str(k); ok {
			return s, true
		}
	}
	return "", false
}

func (r Raw) number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Announce is the payload of announce/<device>/<type>/<id>.
type Announce struct {
	Name     string
	Location string
}

func ParseAnnounce(r Raw) (Announce, error) {
	name, ok := r.str("name")
	if !ok || name == "" {
		return Announce{}, fmt.Errorf("announce: missing name")
	}
	location, ok := r.str("location")
	if !ok || location == "" {
		return Announce{}, fmt.Errorf("announce: missing location")
	}
	return Announce{Name: name, Location: location}, nil
}

// SensorUpdate is the sensor-path payload of update/response.
type SensorUpdate struct {
	Value   string
	Unit    string
	Enabled *bool
}

func ParseSensorUpdate(r Raw) (SensorUpdate, error) {
	value, ok := r.str("value")
	if !ok {
		if n, ok := r.number("value"); ok {
			value = strconv.FormatFloat(n, 'f', -1, 64)
		} else {
			return SensorUpdate{}, fmt.Errorf("update: missing value")
		}
	}
	unit, _ := r.strFallback("unit", "units")

	var enabled *bool
	if b, ok := r.boolField("enabled", "enable"); ok {
		enabled = &b
	}
	return SensorUpdate{Value: value, Unit: unit, Enabled: enabled}, nil
}

func (r Raw) boolField(keys ...string) (bool, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		b, ok := NormalizeBool(v)
		if ok {
			return b, true
		}
	}
	return false, false
}

// NormalizeBool interprets the common truthy/falsy wire encodings:
// native bool, "0"/"1", and yes/no-style strings.
func NormalizeBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "on", "enabled", "enable":
			return true, true
		case "false", "0", "no", "off", "disabled", "disable":
			return false, true
		}
	}
	return false, false
}

// ActuatorState is the normalized outcome of running a raw actuator
// state report through the stability table in spec.md §4.3.
type ActuatorState struct {
	State     *int   // nil when the raw report was transient / unrecognized
	StateText string // the original raw text, for notify payloads
}

var terminalOn = map[string]bool{
	"true": true, "on": true, "1": true, "yes": true, "active": true,
	"enabled": true, "open": true, "opened": true, "abierto": true,
}

var terminalOff = map[string]bool{
	"false": true, "off": true, "0": true, "no": true, "disabled": true,
	"inactive": true, "close": true, "closed": true, "cerrado": true,
}

var transientStates = map[string]bool{
	"opening": true, "closing": true, "stop": true, "stopped": true,
	"moving": true, "forward": true, "backward": true,
}

// NormalizeState implements the raw-input -> persisted-state table
// from spec.md §4.3. Strings of the form "OPEN:<n>" / "CLOSE:<n>" have
// their left token normalized the same way.
func NormalizeState(raw any) ActuatorState {
	text := stateText(raw)

	if b, ok := raw.(bool); ok {
		state := 0
		if b {
			state = 1
		}
		return ActuatorState{State: &state, StateText: text}
	}

	norm := strings.ToLower(strings.TrimSpace(text))
	if idx := strings.Index(norm, ":"); idx >= 0 {
		norm = norm[:idx]
	}

	switch {
	case terminalOn[norm]:
		s := 1
		return ActuatorState{State: &s, StateText: text}
	case terminalOff[norm]:
		s := 0
		return ActuatorState{State: &s, StateText: text}
	case transientStates[norm]:
		return ActuatorState{State: nil, StateText: text}
	default:
		return ActuatorState{State: nil, StateText: text}
	}
}

func stateText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Alert is the payload of alert/<device>/<type>/<id>; all fields are
// optional and back-filled by the handler from PS when absent.
type Alert struct {
	Status   string
	Message  string
	Severity string
	Code     string
	Name     string
	Location string
}

const (
	DefaultAlertStatus   = "ALERT"
	DefaultAlertSeverity = "medium"
	DefaultAlertMessage  = "Sin mensaje"
)

func ParseAlert(r Raw) Alert {
	a := Alert{
		Status:   DefaultAlertStatus,
		Severity: DefaultAlertSeverity,
		Message:  DefaultAlertMessage,
	}
	if s, ok := r.str("status"); ok && s != "" {
		a.Status = s
	}
	if s, ok := r.str("message"); ok && s != "" {
		a.Message = s
	}
	if s, ok := r.str("severity"); ok && s != "" {
		a.Severity = s
	}
	if s, ok := r.str("code"); ok {
		a.Code = s
	}
	a.Name, _ = r.str("name")
	a.Location, _ = r.str("location")
	return a
}

// Response is the payload of response/<device>/<type>/<id>, after
// requester extraction. Requester is stripped from Raw before
// republication per spec.md §4.5.
type Response struct {
	Requester string
	Raw       Raw
}

// ExtractRequester pulls and deletes the "requester" key from r,
// returning it (empty string if absent). Mutates r in place so the
// caller can republish the cleaned map directly.
func ExtractRequester(r Raw) string {
	requester, _ := r.str("requester")
	delete(r, "requester")
	return requester
}

// SystemComponentRef is the {device,type,id} triple common to
// system/get, system/set, and system/select's row selectors.
type SystemComponentRef struct {
	Device string
	Type   string
	ID     int
}

func ParseComponentRef(r Raw) (SystemComponentRef, error) {
	device, ok := r.str("device")
	if !ok || device == "" {
		return SystemComponentRef{}, fmt.Errorf("missing device")
	}
	typ, ok := r.str("type")
	if !ok || (typ != "sensor" && typ != "actuator") {
		return SystemComponentRef{}, fmt.Errorf("missing or invalid type %q", typ)
	}
	idF, ok := r.number("id")
	if !ok {
		return SystemComponentRef{}, fmt.Errorf("missing id")
	}
	id := int(idF)
	if id < 0 {
		return SystemComponentRef{}, fmt.Errorf("negative id %d", id)
	}
	return SystemComponentRef{Device: device, Type: typ, ID: id}, nil
}

// SystemSet is the decoded payload of system/set/<service>, covering
// all three shapes from spec.md §3.
type SystemSet struct {
	SystemComponentRef
	// Actuator, simple.
	HasState bool
	State    bool
	// Actuator, motion.
	HasCommand bool
	Command    string // OPEN, CLOSE, STOP
	Speed      int    // clamped to [0,100], defaults to 100 if absent on a motion command
	// Sensor.
	HasEnable bool
	Enable    bool
}

func ParseSystemSet(r Raw) (SystemSet, error) {
	ref, err := ParseComponentRef(r)
	if err != nil {
		return SystemSet{}, fmt.Errorf("system/set: %w", err)
	}
	out := SystemSet{SystemComponentRef: ref}

	if ref.Type == "sensor" {
		b, ok := r.boolField("enable", "enabled")
		if !ok {
			return SystemSet{}, fmt.Errorf("system/set: sensor missing enable")
		}
		out.HasEnable = true
		out.Enable = b
		return out, nil
	}

	// Actuator: motion takes priority if "command" is present.
	if cmd, ok := r.str("command"); ok && cmd != "" {
		cmd = strings.ToUpper(cmd)
		switch cmd {
		case "OPEN", "CLOSE", "STOP":
		default:
			return SystemSet{}, fmt.Errorf("system/set: invalid command %q", cmd)
		}
		out.HasCommand = true
		out.Command = cmd
		out.Speed = 100
		if speed, ok := r.number("speed"); ok {
			out.Speed = clamp(int(speed), 0, 100)
		}
		return out, nil
	}

	b, ok := r.boolField("state")
	if !ok {
		return SystemSet{}, fmt.Errorf("system/set: actuator missing state")
	}
	out.HasState = true
	out.State = b
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SystemSelect is the decoded payload of system/select/<service>.
type SystemSelect struct {
	Request string // devices, sensors, actuators, alerts, all
	Device  string
	ID      int
	HasID   bool
	Limit   int
}

var validSelectRequests = map[string]bool{
	"devices": true, "sensors": true, "actuators": true, "alerts": true, "all": true,
}

func ParseSystemSelect(r Raw) (SystemSelect, error) {
	req, ok := r.str("request")
	if !ok || !validSelectRequests[req] {
		return SystemSelect{}, fmt.Errorf("system/select: invalid request %q", req)
	}
	out := SystemSelect{Request: req, Limit: 10}
	out.Device, _ = r.str("device")
	if idF, ok := r.number("id"); ok {
		out.ID = int(idF)
		out.HasID = true
	}
	if limitF, ok := r.number("limit"); ok {
		out.Limit = int(limitF)
	}
	return out, nil
}
