package store

// Device is a row in the devices table.
type Device struct {
	DeviceName string
	LastSeen   string
}

// SensorKey identifies a sensor component.
type SensorKey struct {
	Device string
	ID     int
}

// Sensor is a row in the sensors table.
type Sensor struct {
	Device   string
	ID       int
	Name     string
	Location string
	Value    *string
	Unit     *string
	Enabled  bool
	LastSeen string
}

// SensorFields carries the columns an operation intends to write.
// A nil pointer means "leave the existing stored value untouched"
// (used by announce, which must preserve value/unit per spec.md §4.2).
type SensorFields struct {
	Name     *string
	Location *string
	Value    *string
	Unit     *string
	Enabled  *bool
}

// ActuatorKey identifies an actuator component.
type ActuatorKey struct {
	Device string
	ID     int
}

// Actuator is a row in the actuators table. State is nil when the
// component has never reported a terminal state (spec.md §4.3).
type Actuator struct {
	Device   string
	ID       int
	Name     string
	Location string
	State    *int
	LastSeen string
}

// ActuatorFields carries the columns an operation intends to write.
// State nil-vs-unset is distinguished via HasState: announce, and
// update/response on a transient report, leave state untouched
// (HasState=false); HasState=true with State=nil writes SQL NULL.
type ActuatorFields struct {
	Name     *string
	Location *string
	HasState bool
	State    *int
}

// AlertKey identifies the single alert row owned by one component.
type AlertKey struct {
	Device        string
	ComponentType string
	ComponentID   int
}

// Alert is a row in the alerts table.
type Alert struct {
	Device        string
	ComponentType string
	ComponentID   int
	ComponentName string
	Location      string
	Status        string
	Message       string
	Severity      string
	Code          string
	Timestamp     string
}

// AlertFields carries the alert payload fields to upsert. Unlike
// sensors/actuators, every alert write replaces the entire row
// (spec.md §4.4 — "each new alert upserts and overwrites the
// previous"), so there is no partial-field preservation here.
type AlertFields struct {
	ComponentName string
	Location      string
	Status        string
	Message       string
	Severity      string
	Code          string
}

var validSeverities = map[string]bool{"low": true, "medium": true, "high": true}

// NormalizeSeverity maps an arbitrary incoming severity string to one
// of {low, medium, high}, defaulting to medium for anything else. This
// implements Open Question 2's resolution: the column is policed at
// the Go layer since SQLite has no ENUM type.
func NormalizeSeverity(s string) string {
	if validSeverities[s] {
		return s
	}
	return "medium"
}
