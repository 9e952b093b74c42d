package handlers

import (
	"context"

	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/topic"
)

// SystemNotify handles system/notify/* on the Router side. Per
// SPEC_FULL.md §4.9 (resolving spec.md's Open Question 3), the Router
// is a pure observer of its own fan-out: it never writes to PS here.
// The Snapshot Store, not the Router, is the consumer that reacts to
// these events.
func (h *Handlers) SystemNotify(ctx context.Context, key topic.Key, raw payload.Raw) error {
	h.Logger.Debug("system/notify observed", "device", key.Device, "event", key.Event)
	return nil
}
