package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

const telegramService = "telegram-service"

// Response handles response/<device>/<type>/<id>: a device's reply to
// a prior get/set. It persists the reported value/state, strips the
// requester from the payload, then correlates the reply back to the
// requester and, separately, taps it to the telegram presentation
// service (spec.md §4.5).
func (h *Handlers) Response(ctx context.Context, key topic.Key, raw payload.Raw) error {
	if err := h.Store.UpsertDevice(ctx, key.Device); err != nil {
		return fmt.Errorf("response: upsert device: %w", err)
	}
	// Defensive upsert: ensure the component row exists without
	// touching any field, so requester correlation still works even if
	// this is the first message ever seen for it.
	if err := h.ensureComponent(ctx, key); err != nil {
		return fmt.Errorf("response: ensure component: %w", err)
	}

	requester := payload.ExtractRequester(raw)

	switch key.Type {
	case topic.Sensor:
		if err := h.persistSensorResponse(ctx, key, raw); err != nil {
			return fmt.Errorf("response: %w", err)
		}
		// The republished payload always carries the unit as "units".
		if unit, ok := raw["unit"]; ok {
			if _, has := raw["units"]; !has {
				raw["units"] = unit
			}
			delete(raw, "unit")
		}
	case topic.Actuator:
		if err := h.persistActuatorResponse(ctx, key, raw); err != nil {
			return fmt.Errorf("response: %w", err)
		}
	}

	if requester != "" {
		dest := topic.BuildResponse(requester, key.Type, key.Device, key.ID)
		h.publish(ctx, dest, 1, raw)
	}
	if requester != telegramService {
		dest := topic.BuildResponse(telegramService, key.Type, key.Device, key.ID)
		h.publish(ctx, dest, 1, raw)
	}
	return nil
}

func (h *Handlers) ensureComponent(ctx context.Context, key topic.Key) error {
	switch key.Type {
	case topic.Sensor:
		return h.Store.UpsertSensor(ctx, store.SensorKey{Device: key.Device, ID: key.ID}, store.SensorFields{})
	case topic.Actuator:
		return h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: key.Device, ID: key.ID}, store.ActuatorFields{})
	default:
		return nil
	}
}

func (h *Handlers) persistSensorResponse(ctx context.Context, key topic.Key, raw payload.Raw) error {
	u, err := payload.ParseSensorUpdate(raw)
	if err != nil {
		return err
	}
	value, unit := u.Value, u.Unit
	fields := store.SensorFields{Value: &value, Enabled: u.Enabled}
	if unit != "" {
		fields.Unit = &unit
	}
	return h.Store.UpsertSensor(ctx, store.SensorKey{Device: key.Device, ID: key.ID}, fields)
}

func (h *Handlers) persistActuatorResponse(ctx context.Context, key topic.Key, raw payload.Raw) error {
	rawState, ok := raw["state"]
	if !ok {
		return fmt.Errorf("missing state")
	}
	ns := payload.NormalizeState(rawState)
	// A transient reading (ns.State == nil) must not overwrite the
	// previously persisted terminal state with NULL (spec.md §4.3).
	return h.Store.UpsertActuator(ctx, store.ActuatorKey{Device: key.Device, ID: key.ID},
		store.ActuatorFields{HasState: ns.State != nil, State: ns.State})
}
