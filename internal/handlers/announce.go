package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

// Announce handles announce/<device>/<type>/<id>: upserts the device
// and component, preserving any existing value/state, then fans out a
// "registered" notify event (spec.md §4.2).
func (h *Handlers) Announce(ctx context.Context, key topic.Key, raw payload.Raw) error {
	a, err := payload.ParseAnnounce(raw)
	if err != nil {
		return fmt.Errorf("announce: %w", err)
	}

	if err := h.Store.UpsertDevice(ctx, key.Device); err != nil {
		return fmt.Errorf("announce: upsert device: %w", err)
	}

	name, location := a.Name, a.Location
	switch key.Type {
	case topic.Sensor:
		err = h.Store.UpsertSensor(ctx, store.SensorKey{Device: key.Device, ID: key.ID},
			store.SensorFields{Name: &name, Location: &location})
	case topic.Actuator:
		err = h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: key.Device, ID: key.ID},
			store.ActuatorFields{Name: &name, Location: &location})
	}
	if err != nil {
		return fmt.Errorf("announce: upsert component: %w", err)
	}

	h.publish(ctx, topic.BuildNotify(key.Device, "announce"), 1, payload.Raw{
		"device":    key.Device,
		"type":      string(key.Type),
		"id":        key.ID,
		"name":      a.Name,
		"location":  a.Location,
		"status":    "registered",
		"timestamp": now(),
	})
	return nil
}
