package handlers

import (
	"context"
	"fmt"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/topic"
)

// SystemGet handles system/get/<service>: forwards a validated GET to
// the device and expects the reply on response/<device>/<type>/<id>,
// handled by Response (spec.md §4.6).
func (h *Handlers) SystemGet(ctx context.Context, service string, raw payload.Raw) error {
	ref, err := payload.ParseComponentRef(raw)
	if err != nil {
		return fmt.Errorf("system/get: %w", err)
	}

	exists, err := h.componentExists(ctx, ref.Device, topic.ComponentType(ref.Type), ref.ID)
	if err != nil {
		return fmt.Errorf("system/get: lookup component: %w", err)
	}
	if !exists {
		h.publishComponentNotFound(ctx, service, ref.Device, ref.Type, ref.ID)
		return &ErrComponentNotFound{Device: ref.Device, Type: ref.Type, ID: ref.ID}
	}

	dest := topic.BuildComponent("get", ref.Device, topic.ComponentType(ref.Type), ref.ID)
	h.publish(ctx, dest, 1, payload.Raw{"requester": service})
	return nil
}
