// Package topic implements the Topic Parser & Dispatcher: it
// canonicalizes an inbound MQTT topic string into a typed dispatch
// Key, so the router loop never re-derives routing decisions from raw
// strings more than once per message.
package topic

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which handler owns a parsed topic.
type Kind int

const (
	Announce Kind = iota
	Update
	Alert
	Response
	SystemSet
	SystemGet
	SystemSelect
	SystemNotify
)

func (k Kind) String() string {
	switch k {
	case Announce:
		return "announce"
	case Update:
		return "update"
	case Alert:
		return "alert"
	case Response:
		return "response"
	case SystemSet:
		return "system/set"
	case SystemGet:
		return "system/get"
	case SystemSelect:
		return "system/select"
	case SystemNotify:
		return "system/notify"
	default:
		return "unknown"
	}
}

// ComponentType is either "sensor" or "actuator".
type ComponentType string

const (
	Sensor   ComponentType = "sensor"
	Actuator ComponentType = "actuator"
)

// Key is the canonicalized result of parsing one inbound topic.
// Which fields are populated depends on Kind:
//   - Announce/Update/Alert/Response: Device, Type, ID.
//   - SystemSet/SystemGet/SystemSelect: Service.
//   - SystemNotify: Device (may be empty) and Event.
type Key struct {
	Kind    Kind
	Device  string
	Type    ComponentType
	ID      int
	Service string
	Event   string
}

// Parse canonicalizes topic into a Key per the grammar:
//
//	announce/<device>/<type>/<id>
//	update/<device>/<type>/<id>
//	alert/<device>/<type>/<id>
//	response/<device>/<type>/<id>
//	system/set/<service>
//	system/get/<service>
//	system/select/<service>
//	system/notify/<device>/<event>
//	system/notify/<event>
//
// An error is returned for any topic that does not match one of these
// shapes, or whose <type>/<id> fail validation; callers are expected
// to log-and-drop rather than propagate the error further.
func Parse(topic string) (Key, error) {
	segs := strings.Split(topic, "/")
	if len(segs) == 0 || segs[0] == "" {
		return Key{}, fmt.Errorf("empty topic")
	}

	switch segs[0] {
	case "announce":
		return parseComponentTopic(Announce, segs)
	case "update":
		return parseComponentTopic(Update, segs)
	case "alert":
		return parseComponentTopic(Alert, segs)
	case "response":
		return parseComponentTopic(Response, segs)
	case "system":
		return parseSystemTopic(segs)
	default:
		return Key{}, fmt.Errorf("unrecognized topic prefix %q", segs[0])
	}
}

func parseComponentTopic(kind Kind, segs []string) (Key, error) {
	if len(segs) != 4 {
		return Key{}, fmt.Errorf("%s: want 4 segments, got %d", kind, len(segs))
	}
	device, typ, idStr := segs[1], segs[2], segs[3]
	if device == "" {
		return Key{}, fmt.Errorf("%s: empty device", kind)
	}
	ct, err := parseComponentType(typ)
	if err != nil {
		return Key{}, fmt.Errorf("%s: %w", kind, err)
	}
	id, err := parseID(idStr)
	if err != nil {
		return Key{}, fmt.Errorf("%s: %w", kind, err)
	}
	return Key{Kind: kind, Device: device, Type: ct, ID: id}, nil
}

func parseSystemTopic(segs []string) (Key, error) {
	if len(segs) < 3 {
		return Key{}, fmt.Errorf("system: want at least 3 segments, got %d", len(segs))
	}
	verb := segs[1]
	switch verb {
	case "set":
		return parseSystemService(SystemSet, segs)
	case "get":
		return parseSystemService(SystemGet, segs)
	case "select":
		return parseSystemService(SystemSelect, segs)
	case "notify":
		return parseSystemNotify(segs)
	default:
		return Key{}, fmt.Errorf("system: unrecognized verb %q", verb)
	}
}

func parseSystemService(kind Kind, segs []string) (Key, error) {
	if len(segs) != 3 {
		return Key{}, fmt.Errorf("%s: want 3 segments, got %d", kind, len(segs))
	}
	service := segs[2]
	if service == "" {
		return Key{}, fmt.Errorf("%s: empty service", kind)
	}
	return Key{Kind: kind, Service: service}, nil
}

func parseSystemNotify(segs []string) (Key, error) {
	switch len(segs) {
	case 3:
		// system/notify/<event>
		if segs[2] == "" {
			return Key{}, fmt.Errorf("system/notify: empty event")
		}
		return Key{Kind: SystemNotify, Event: segs[2]}, nil
	case 4:
		// system/notify/<device>/<event>
		if segs[2] == "" || segs[3] == "" {
			return Key{}, fmt.Errorf("system/notify: empty device or event")
		}
		return Key{Kind: SystemNotify, Device: segs[2], Event: segs[3]}, nil
	default:
		return Key{}, fmt.Errorf("system/notify: want 3 or 4 segments, got %d", len(segs))
	}
}

func parseComponentType(s string) (ComponentType, error) {
	switch ComponentType(s) {
	case Sensor, Actuator:
		return ComponentType(s), nil
	default:
		return "", fmt.Errorf("invalid component type %q", s)
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("negative id %d", id)
	}
	return id, nil
}

// Build renders the publish-side topics the handlers emit. These are
// the mirror image of Parse's inbound grammar: the component-facing
// get/set topics the router forwards to devices, and the
// system/response/system/notify fan-out topics.
func BuildComponent(action string, device string, ct ComponentType, id int) string {
	return fmt.Sprintf("%s/%s/%s/%d", action, device, ct, id)
}

func BuildNotify(device, event string) string {
	if device == "" {
		return fmt.Sprintf("system/notify/%s", event)
	}
	return fmt.Sprintf("system/notify/%s/%s", device, event)
}

func BuildResponse(requester string, ct ComponentType, device string, id int) string {
	return fmt.Sprintf("system/response/%s/%s/%s/%d", requester, ct, device, id)
}

func BuildSelectResponse(service, table string, rest ...string) string {
	parts := append([]string{"system/response", service, table}, rest...)
	return strings.Join(parts, "/")
}
