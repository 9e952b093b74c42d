// Package dispatch implements the single-threaded router loop: every
// inbound message is parsed, decoded, and handed to exactly one
// handler before the next message is processed (spec.md §5).
package dispatch

import (
	"context"
	"log/slog"

	"github.com/hearth-iot/hearth/internal/handlers"
	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/topic"
)

// Router wires a parsed topic.Key to the matching handlers.Handlers
// method. The caller wraps HandleMessage in a broker.Handler; the
// broker calls it serially, so handler bodies never race.
type Router struct {
	H      *handlers.Handlers
	Logger *slog.Logger
}

func New(h *handlers.Handlers, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{H: h, Logger: logger}
}

// HandleMessage is invoked once per inbound MQTT message. It never
// panics out of this function: a handler that panics is recovered,
// logged, and the loop continues unaffected (spec.md §7, "programmer
// bug" policy).
func (r *Router) HandleMessage(ctx context.Context, mqttTopic string, raw []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.Logger.Error("handler panicked", "topic", mqttTopic, "panic", p)
		}
	}()

	key, err := topic.Parse(mqttTopic)
	if err != nil {
		r.Logger.Debug("dropping message: unrecognized topic", "topic", mqttTopic, "error", err)
		return
	}

	body, err := payload.Decode(raw)
	if err != nil {
		r.Logger.Warn("dropping message: malformed json", "topic", mqttTopic, "error", err)
		return
	}

	if err := r.dispatch(ctx, key, body); err != nil {
		r.Logger.Warn("handler error", "topic", mqttTopic, "error", err)
	}
}

func (r *Router) dispatch(ctx context.Context, key topic.Key, body payload.Raw) error {
	switch key.Kind {
	case topic.Announce:
		return r.H.Announce(ctx, key, body)
	case topic.Update:
		return r.H.Update(ctx, key, body)
	case topic.Alert:
		return r.H.Alert(ctx, key, body)
	case topic.Response:
		return r.H.Response(ctx, key, body)
	case topic.SystemGet:
		return r.H.SystemGet(ctx, key.Service, body)
	case topic.SystemSet:
		return r.H.SystemSet(ctx, key.Service, body)
	case topic.SystemSelect:
		return r.H.SystemSelect(ctx, key.Service, body)
	case topic.SystemNotify:
		return r.H.SystemNotify(ctx, key, body)
	default:
		r.Logger.Debug("no handler for dispatch kind", "kind", key.Kind)
		return nil
	}
}
