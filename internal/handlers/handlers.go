// Package handlers implements the eight router handlers: announce,
// update, alert, response (device-facing), and system_get, system_set,
// system_select, system_notify (service-facing). Each handler mutates
// the Persistence Store and republishes derived events; none retain
// state across invocations (spec.md §4).
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

// Publisher is the narrow broker surface handlers need. Satisfied by
// *broker.Broker; declared locally so this package has no dependency
// on the transport implementation (and so tests can supply a fake).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error
}

// Handlers bundles the Persistence Store and broker access shared by
// every handler function. A zero-value logger falls back to
// slog.Default, matching every other package constructor in this
// module.
type Handlers struct {
	Store  *store.Store
	Pub    Publisher
	Logger *slog.Logger
}

func New(s *store.Store, pub Publisher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{Store: s, Pub: pub, Logger: logger}
}

// publish is a thin fire-and-forget wrapper: fan-out publications
// (system/notify/*, system/response/*) never block or retry message
// processing on failure (spec.md §7), so callers log and move on.
func (h *Handlers) publish(ctx context.Context, dest string, qos byte, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.Logger.Error("marshal publish payload", "topic", dest, "error", err)
		return
	}
	if err := h.Pub.Publish(ctx, dest, data, qos, false); err != nil {
		h.Logger.Warn("publish failed", "topic", dest, "error", err)
	}
}

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// componentExists reports whether the sensor or actuator row for
// (device, ct, id) exists in PS, used by system_get/system_set
// validation.
func (h *Handlers) componentExists(ctx context.Context, device string, ct topic.ComponentType, id int) (bool, error) {
	switch ct {
	case topic.Sensor:
		s, err := h.Store.GetSensor(ctx, store.SensorKey{Device: device, ID: id})
		return s != nil, err
	case topic.Actuator:
		a, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: device, ID: id})
		return a != nil, err
	default:
		return false, nil
	}
}

// ErrComponentNotFound is returned by system_get/system_set when the
// referenced device or component row does not exist in PS. The
// handler publishes the {error:"component_not_found",...} reply
// itself before returning this error; the dispatch loop only logs it
// (spec.md §7's "referential failure" policy).
type ErrComponentNotFound struct {
	Device string
	Type   string
	ID     int
}

func (e *ErrComponentNotFound) Error() string {
	return "component not found: " + e.Device + "/" + e.Type
}

func (h *Handlers) publishComponentNotFound(ctx context.Context, requester, device, typ string, id int) {
	dest := topic.BuildResponse(requester, topic.ComponentType(typ), device, id)
	h.publish(ctx, dest, 1, payload.Raw{
		"error":  "component_not_found",
		"device": device,
		"type":   typ,
		"id":     id,
	})
}
