package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/topic"
)

// SystemSelect handles system/select/<service>: a pure read surface
// over PS, never touching devices (spec.md §4.8).
func (h *Handlers) SystemSelect(ctx context.Context, service string, raw payload.Raw) error {
	sel, err := payload.ParseSystemSelect(raw)
	if err != nil {
		return fmt.Errorf("system/select: %w", err)
	}

	switch sel.Request {
	case "devices":
		return h.selectDevices(ctx, service, false)
	case "sensors":
		return h.selectSensors(ctx, service, sel, false)
	case "actuators":
		return h.selectActuators(ctx, service, sel, false)
	case "alerts":
		return h.selectAlerts(ctx, service, sel)
	case "all":
		return h.selectAll(ctx, service)
	default:
		return fmt.Errorf("system/select: unreachable request %q", sel.Request)
	}
}

func (h *Handlers) selectDevices(ctx context.Context, service string, stamp bool) error {
	devices, err := h.Store.SelectDevices(ctx)
	if err != nil {
		return fmt.Errorf("system/select: %w", err)
	}
	if len(devices) == 0 {
		h.publishEmpty(ctx, service, "devices")
		return nil
	}
	for _, d := range devices {
		dest := topic.BuildSelectResponse(service, "devices", d.DeviceName)
		row := payload.Raw{"device_name": d.DeviceName, "last_seen": d.LastSeen}
		if stamp {
			row["snapshot_ts"] = now()
		}
		h.publish(ctx, dest, 1, row)
	}
	return nil
}

func (h *Handlers) selectSensors(ctx context.Context, service string, sel payload.SystemSelect, stamp bool) error {
	id := -1
	if sel.HasID {
		id = sel.ID
	}
	sensors, err := h.Store.SelectSensors(ctx, sel.Device, id)
	if err != nil {
		return fmt.Errorf("system/select: %w", err)
	}
	if len(sensors) == 0 && !stamp {
		h.publishEmpty(ctx, service, "sensors")
		return nil
	}
	for _, s := range sensors {
		dest := topic.BuildSelectResponse(service, "sensors", s.Device, strconv.Itoa(s.ID))
		row := payload.Raw{
			"device": s.Device, "id": s.ID, "name": s.Name, "location": s.Location,
			"value": s.Value, "unit": s.Unit, "enabled": s.Enabled, "last_seen": s.LastSeen,
		}
		if stamp {
			row["snapshot_ts"] = now()
		}
		h.publish(ctx, dest, 1, row)
	}
	return nil
}

func (h *Handlers) selectActuators(ctx context.Context, service string, sel payload.SystemSelect, stamp bool) error {
	id := -1
	if sel.HasID {
		id = sel.ID
	}
	actuators, err := h.Store.SelectActuators(ctx, sel.Device, id)
	if err != nil {
		return fmt.Errorf("system/select: %w", err)
	}
	if len(actuators) == 0 && !stamp {
		h.publishEmpty(ctx, service, "actuators")
		return nil
	}
	for _, a := range actuators {
		dest := topic.BuildSelectResponse(service, "actuators", a.Device, strconv.Itoa(a.ID))
		row := payload.Raw{
			"device": a.Device, "id": a.ID, "name": a.Name, "location": a.Location,
			"state": stateOrNil(a.State), "last_seen": a.LastSeen,
		}
		if stamp {
			row["snapshot_ts"] = now()
		}
		h.publish(ctx, dest, 1, row)
	}
	return nil
}

func (h *Handlers) selectAlerts(ctx context.Context, service string, sel payload.SystemSelect) error {
	alerts, err := h.Store.SelectAlerts(ctx, sel.Limit)
	if err != nil {
		return fmt.Errorf("system/select: %w", err)
	}
	if len(alerts) == 0 {
		h.publishEmpty(ctx, service, "alerts")
		return nil
	}
	dest := topic.BuildSelectResponse(service, "alerts")
	h.publish(ctx, dest, 1, alerts)
	return nil
}

// selectAll emits devices, sensors, and actuators stamped with
// snapshot_ts — the anchor the Snapshot Store keys its full-dump load
// off of (spec.md §4.8, §4.9).
func (h *Handlers) selectAll(ctx context.Context, service string) error {
	if err := h.selectDevices(ctx, service, true); err != nil {
		return err
	}
	if err := h.selectSensors(ctx, service, payload.SystemSelect{}, true); err != nil {
		return err
	}
	if err := h.selectActuators(ctx, service, payload.SystemSelect{}, true); err != nil {
		return err
	}
	return nil
}

func (h *Handlers) publishEmpty(ctx context.Context, service, table string) {
	dest := topic.BuildSelectResponse(service, table, "empty")
	h.publish(ctx, dest, 1, payload.Raw{"status": "no_results"})
}
