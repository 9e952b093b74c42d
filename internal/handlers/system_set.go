package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

// SystemSet handles system/set/<service>: forwards a validated SET to
// the device and applies the PS policy projection described in
// spec.md §4.7 (simple actuator, motion actuator, sensor enable).
func (h *Handlers) SystemSet(ctx context.Context, service string, raw payload.Raw) error {
	s, err := payload.ParseSystemSet(raw)
	if err != nil {
		return fmt.Errorf("system/set: %w", err)
	}

	exists, err := h.componentExists(ctx, s.Device, topic.ComponentType(s.Type), s.ID)
	if err != nil {
		return fmt.Errorf("system/set: lookup component: %w", err)
	}
	if !exists {
		h.publishComponentNotFound(ctx, service, s.Device, s.Type, s.ID)
		return &ErrComponentNotFound{Device: s.Device, Type: s.Type, ID: s.ID}
	}

	if err := h.Store.UpsertDevice(ctx, s.Device); err != nil {
		return fmt.Errorf("system/set: touch device: %w", err)
	}

	var forward payload.Raw
	var notifyValue any

	switch {
	case s.HasEnable:
		forward = payload.Raw{"requester": service, "enable": s.Enable}
		notifyValue = s.Enable
		// Device will ack via response; PS is not mutated here per spec.md §4.7.

	case s.HasCommand:
		forward = payload.Raw{"requester": service, "command": s.Command}
		if s.Command == "OPEN" || s.Command == "CLOSE" {
			forward["speed"] = s.Speed
			// Compatibility projection: OPEN -> 1 (open), CLOSE -> 0
			// (closed). STOP never reaches this branch, so it leaves
			// the column untouched.
			state := 0
			if s.Command == "OPEN" {
				state = 1
			}
			if err := h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: s.Device, ID: s.ID},
				store.ActuatorFields{HasState: true, State: &state}); err != nil {
				return fmt.Errorf("system/set: update actuator state: %w", err)
			}
		}
		notifyValue = s.Command

	case s.HasState:
		forward = payload.Raw{"requester": service, "state": s.State}
		state := 0
		if s.State {
			state = 1
		}
		if err := h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: s.Device, ID: s.ID},
			store.ActuatorFields{HasState: true, State: &state}); err != nil {
			return fmt.Errorf("system/set: update actuator state: %w", err)
		}
		notifyValue = s.State

	default:
		return fmt.Errorf("system/set: no recognized payload shape")
	}

	dest := topic.BuildComponent("set", s.Device, topic.ComponentType(s.Type), s.ID)
	h.publish(ctx, dest, 1, forward)

	name, location, _ := h.componentNameLocation(ctx, topic.Key{Device: s.Device, Type: topic.ComponentType(s.Type), ID: s.ID})
	h.publish(ctx, "system/notify/set", 1, payload.Raw{
		"device":    s.Device,
		"type":      s.Type,
		"id":        s.ID,
		"name":      name,
		"location":  location,
		"value":     notifyValue,
		"timestamp": now(),
		"source":    service,
	})
	return nil
}
