// Package snapshot implements the Snapshot Store: a reactive,
// eventually consistent in-memory mirror of the Persistence Store,
// built from system/response/* full dumps and system/notify/* deltas
// (spec.md §4.9).
package snapshot

import (
	"strconv"
	"strings"
	"sync"

	"github.com/hearth-iot/hearth/internal/payload"
)

// Component is one sensor or actuator row as mirrored from a full
// dump or an announce notify event. Fields beyond Name/Location are
// intentionally loose (map[string]any) since the wire payload shape
// varies between the full-dump and notify sources.
type Component struct {
	DeviceName string
	ID         int
	Name       string
	Location   string
	Data       map[string]any
}

type deviceEntry struct {
	sensors   map[int]Component
	actuators map[int]Component
}

func newDeviceEntry() deviceEntry {
	return deviceEntry{sensors: map[int]Component{}, actuators: map[int]Component{}}
}

// Store is the service-side mirror. The zero value is not usable; use
// New. A single mutex guards the whole structure — Go mutexes are not
// reentrant, so unlike the originating implementation's RLock, every
// exported method takes the lock itself and private helpers assume it
// is already held, rather than re-entering it.
type Store struct {
	mu         sync.Mutex
	devices    map[string]deviceEntry
	snapshotTS string
	ready      bool
}

func New() *Store {
	return &Store{devices: map[string]deviceEntry{}}
}

// IngestResponse processes a system/response/<service>/<table>/... full
// dump row. table is "devices", "sensors", or "actuators"; unknown
// tables are ignored. A row that makes the mirror usable latches it
// ready.
func (s *Store) IngestResponse(table string, data payload.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch table {
	case "devices":
		s.addDeviceLocked(data)
	case "sensors":
		s.addComponentLocked(data, false)
	case "actuators":
		s.addComponentLocked(data, true)
	}
	s.markReadyLocked()
}

// IngestNotify processes a system/notify/<device>/<event> (or
// system/notify/<event>) message. Only the "announce" event mutates
// the mirror; any other event is a fan-out the Snapshot Store does
// not model and is ignored. Every announce event — including a
// malformed one that ends up doing nothing — still attempts to mark
// the store ready, matching the ported behavior's "an event alone can
// make the snapshot usable even without a full dump" rule.
func (s *Store) IngestNotify(event string, data payload.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event == "announce" {
		s.applyAnnounceLocked(data)
	}
	s.markReadyLocked()
}

// MarkComplete marks the store ready unconditionally, regardless of
// IsUsable — used after a full system/select "all" dump completes.
func (s *Store) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// markReadyLocked sets ready on the first usable transition. Never
// reversible: once ready, later calls are no-ops.
func (s *Store) markReadyLocked() {
	if s.ready {
		return
	}
	if !s.isUsableLocked() {
		return
	}
	s.ready = true
}

func (s *Store) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Store) IsUsable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isUsableLocked()
}

func (s *Store) isUsableLocked() bool {
	for _, d := range s.devices {
		if len(d.sensors) > 0 || len(d.actuators) > 0 {
			return true
		}
	}
	return false
}

func (s *Store) ensureDeviceLocked(name string) deviceEntry {
	d, ok := s.devices[name]
	if !ok {
		d = newDeviceEntry()
		s.devices[name] = d
	}
	return d
}

func (s *Store) addDeviceLocked(data payload.Raw) {
	name, _ := data["device_name"].(string)
	if name == "" {
		return
	}
	s.ensureDeviceLocked(name)
	s.updateSnapshotTSLocked(data)
}

func (s *Store) addComponentLocked(data payload.Raw, actuator bool) {
	device, _ := data["device"].(string)
	if device == "" {
		device, _ = data["device_name"].(string)
	}
	idVal, ok := data["id"]
	if device == "" || !ok {
		return
	}
	id, ok := toInt(idVal)
	if !ok {
		return
	}

	d := s.ensureDeviceLocked(device)
	name, _ := data["name"].(string)
	location, _ := data["location"].(string)
	comp := Component{DeviceName: device, ID: id, Name: name, Location: location, Data: data}

	if actuator {
		d.actuators[id] = comp
	} else {
		d.sensors[id] = comp
	}
	s.devices[device] = d
	s.updateSnapshotTSLocked(data)
}

func (s *Store) applyAnnounceLocked(data payload.Raw) {
	device, _ := data["device"].(string)
	compType, _ := data["type"].(string)
	idVal, hasID := data["id"]
	if device == "" || compType == "" || !hasID {
		return
	}
	id, ok := toInt(idVal)
	if !ok {
		return
	}

	status := "registered"
	if st, ok := data["status"].(string); ok && st != "" {
		status = strings.ToLower(st)
	}

	d := s.ensureDeviceLocked(device)
	s.updateSnapshotTSLocked(data)

	var bucket map[int]Component
	switch compType {
	case "sensor":
		bucket = d.sensors
	case "actuator":
		bucket = d.actuators
	default:
		return
	}

	if status == "unregistered" {
		delete(bucket, id)
		return
	}

	name, _ := data["name"].(string)
	location, _ := data["location"].(string)
	bucket[id] = Component{DeviceName: device, ID: id, Name: name, Location: location, Data: data}
}

func (s *Store) updateSnapshotTSLocked(data payload.Raw) {
	if ts, ok := data["snapshot_ts"].(string); ok && ts != "" {
		s.snapshotTS = ts
	}
	if ts, ok := data["timestamp"].(string); ok && ts != "" {
		s.snapshotTS = ts
	}
}

// FindResult is the outcome of FindActuator/FindSensor.
type FindResult struct {
	Device string
	ID     int
	Data   Component
}

// FindActuator returns the first actuator whose name and/or location
// contain the given substrings (case-insensitive); either filter may
// be empty to mean "don't care". The resolver does not call it; it
// searches AllActuators/AllSensors instead.
func (s *Store) FindActuator(name, location string) (FindResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for device, d := range s.devices {
		for id, comp := range d.actuators {
			if matches(comp, name, location) {
				return FindResult{Device: device, ID: id, Data: comp}, true
			}
		}
	}
	return FindResult{}, false
}

func (s *Store) FindSensor(name, location string) (FindResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for device, d := range s.devices {
		for id, comp := range d.sensors {
			if matches(comp, name, location) {
				return FindResult{Device: device, ID: id, Data: comp}, true
			}
		}
	}
	return FindResult{}, false
}

// AllActuators and AllSensors give the resolver a flat list to search
// in every pass (exact and fuzzy). The order of the list follows map
// iteration and is not defined.
func (s *Store) AllActuators() []FindResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FindResult
	for device, d := range s.devices {
		for id, comp := range d.actuators {
			out = append(out, FindResult{Device: device, ID: id, Data: comp})
		}
	}
	return out
}

func (s *Store) AllSensors() []FindResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FindResult
	for device, d := range s.devices {
		for id, comp := range d.sensors {
			out = append(out, FindResult{Device: device, ID: id, Data: comp})
		}
	}
	return out
}

func matches(comp Component, name, location string) bool {
	if name != "" && !strings.Contains(strings.ToLower(comp.Name), strings.ToLower(name)) {
		return false
	}
	if location != "" && !strings.Contains(strings.ToLower(comp.Location), strings.ToLower(location)) {
		return false
	}
	return true
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case int:
		return x, true
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
