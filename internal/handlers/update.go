package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

// Update handles update/<device>/<type>/<id>. Sensor reports persist
// value/unit directly; actuator reports go through the state-stability
// normalization in payload.NormalizeState, so a transient report (e.g.
// "opening") never overwrites the last known terminal state (spec.md
// §4.3).
func (h *Handlers) Update(ctx context.Context, key topic.Key, raw payload.Raw) error {
	if err := h.Store.UpsertDevice(ctx, key.Device); err != nil {
		return fmt.Errorf("update: upsert device: %w", err)
	}

	switch key.Type {
	case topic.Sensor:
		return h.updateSensor(ctx, key, raw)
	case topic.Actuator:
		return h.updateActuator(ctx, key, raw)
	default:
		return fmt.Errorf("update: unsupported component type %q", key.Type)
	}
}

func (h *Handlers) updateSensor(ctx context.Context, key topic.Key, raw payload.Raw) error {
	u, err := payload.ParseSensorUpdate(raw)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	value, unit := u.Value, u.Unit
	fields := store.SensorFields{Value: &value}
	if unit != "" {
		fields.Unit = &unit
	}
	if err := h.Store.UpsertSensor(ctx, store.SensorKey{Device: key.Device, ID: key.ID}, fields); err != nil {
		return fmt.Errorf("update: upsert sensor: %w", err)
	}

	h.publish(ctx, topic.BuildNotify(key.Device, "update"), 1, payload.Raw{
		"device":    key.Device,
		"type":      string(key.Type),
		"id":        key.ID,
		"timestamp": now(),
		"value":     u.Value,
		"units":     u.Unit,
	})
	return nil
}

func (h *Handlers) updateActuator(ctx context.Context, key topic.Key, raw payload.Raw) error {
	rawState, ok := raw["state"]
	if !ok {
		return fmt.Errorf("update: missing state")
	}
	ns := payload.NormalizeState(rawState)

	// A transient reading (ns.State == nil) is not persisted at all:
	// HasState stays false so UpsertActuator leaves the existing
	// terminal state column untouched, rather than overwriting it with
	// SQL NULL (spec.md §4.3).
	err := h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: key.Device, ID: key.ID},
		store.ActuatorFields{HasState: ns.State != nil, State: ns.State})
	if err != nil {
		return fmt.Errorf("update: upsert actuator: %w", err)
	}

	event := payload.Raw{
		"device":    key.Device,
		"type":      string(key.Type),
		"id":        key.ID,
		"timestamp": now(),
		"state":     stateOrNil(ns.State),
	}
	if ns.State == nil {
		event["state_text"] = ns.StateText
	}
	h.publish(ctx, topic.BuildNotify(key.Device, "update"), 1, event)
	return nil
}

func stateOrNil(s *int) any {
	if s == nil {
		return nil
	}
	return *s
}
