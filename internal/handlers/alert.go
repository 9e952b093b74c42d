package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/store"
	"github.com/hearth-iot/hearth/internal/topic"
)

// Alert handles alert/<device>/<type>/<id>. One row per component:
// each new alert replaces the previous for that component (spec.md
// §4.4). Missing name/location are back-filled from PS; DB failure is
// logged and never retried (alerts are volatile by design).
func (h *Handlers) Alert(ctx context.Context, key topic.Key, raw payload.Raw) error {
	if err := h.Store.UpsertDevice(ctx, key.Device); err != nil {
		return fmt.Errorf("alert: upsert device: %w", err)
	}

	a := payload.ParseAlert(raw)
	if a.Name == "" || a.Location == "" {
		name, location, err := h.componentNameLocation(ctx, key)
		if err != nil {
			return fmt.Errorf("alert: backfill name/location: %w", err)
		}
		if a.Name == "" {
			a.Name = name
		}
		if a.Location == "" {
			a.Location = location
		}
	}

	akey := store.AlertKey{Device: key.Device, ComponentType: string(key.Type), ComponentID: key.ID}
	fields := store.AlertFields{
		ComponentName: a.Name,
		Location:      a.Location,
		Status:        a.Status,
		Message:       a.Message,
		Severity:      a.Severity,
		Code:          a.Code,
	}
	if err := h.Store.UpsertAlert(ctx, akey, fields); err != nil {
		h.Logger.Error("alert: db write failed, not retried", "device", key.Device, "error", err)
		return nil
	}

	h.publish(ctx, "system/notify/alert", 1, payload.Raw{
		"device_name":    key.Device,
		"component_type": string(key.Type),
		"component_id":   key.ID,
		"component_name": a.Name,
		"location":       a.Location,
		"status":         a.Status,
		"message":        a.Message,
		"severity":       store.NormalizeSeverity(a.Severity),
		"code":           a.Code,
		"timestamp":      now(),
	})
	return nil
}

func (h *Handlers) componentNameLocation(ctx context.Context, key topic.Key) (name, location string, err error) {
	switch key.Type {
	case topic.Sensor:
		s, err := h.Store.GetSensor(ctx, store.SensorKey{Device: key.Device, ID: key.ID})
		if err != nil || s == nil {
			return "", "", err
		}
		return s.Name, s.Location, nil
	case topic.Actuator:
		act, err := h.Store.GetActuator(ctx, store.ActuatorKey{Device: key.Device, ID: key.ID})
		if err != nil || act == nil {
			return "", "", err
		}
		return act.Name, act.Location, nil
	default:
		return "", "", nil
	}
}
