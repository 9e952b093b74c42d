package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hearth-iot/hearth/internal/broker"
	"github.com/hearth-iot/hearth/internal/intent"
	"github.com/hearth-iot/hearth/internal/payload"
	"github.com/hearth-iot/hearth/internal/snapshot"
	"github.com/hearth-iot/hearth/internal/topic"
)

// snapshotSubscriptions is the narrow topic set the intent service
// needs to keep its Snapshot Store current: notify events plus
// system/response traffic for every requester (the service segment is
// a wildcard, not this service's own name) (spec.md §4.9).
func snapshotSubscriptions() []broker.Subscription {
	return []broker.Subscription{
		{Topic: "system/notify/#", QoS: 1},
		{Topic: "system/response/+/+", QoS: 1},
		{Topic: "system/response/+/+/+", QoS: 1},
		{Topic: "system/response/+/+/+/+", QoS: 1},
	}
}

// snapshotFeeder returns a broker.Handler that routes inbound traffic
// into the Snapshot Store's Ingest* methods, mirroring the original's
// intent-service main loop (it subscribes and feeds the in-memory
// mirror directly, with no persistence store of its own).
func snapshotFeeder(snap *snapshot.Store, logger *slog.Logger) broker.Handler {
	return func(mqttTopic string, raw []byte) {
		// system/response/<service>/<table>/... carries a full-dump row;
		// topic.Parse does not accept it, and the table is segment 3.
		if segs := strings.Split(mqttTopic, "/"); len(segs) >= 5 && segs[0] == "system" && segs[1] == "response" {
			body, err := payload.Decode(raw)
			if err != nil {
				logger.Warn("snapshot feeder: dropping malformed json", "topic", mqttTopic, "error", err)
				return
			}
			snap.IngestResponse(segs[3], body)
			return
		}

		key, err := topic.Parse(mqttTopic)
		if err != nil {
			logger.Debug("snapshot feeder: dropping unrecognized topic", "topic", mqttTopic, "error", err)
			return
		}

		body, err := payload.Decode(raw)
		if err != nil {
			logger.Warn("snapshot feeder: dropping malformed json", "topic", mqttTopic, "error", err)
			return
		}

		switch key.Kind {
		case topic.SystemNotify:
			snap.IngestNotify(key.Event, body)
		case topic.Response:
			table := selectTableFromBody(body)
			if table != "" {
				snap.IngestResponse(table, body)
			}
		}
	}
}

// selectTableFromBody infers a full-dump table from the fields a row
// carries: device_name without id is a device row, and a type of
// "sensor" or "actuator" names a component table. A row with neither
// yields "".
func selectTableFromBody(body payload.Raw) string {
	if _, ok := body["device_name"]; ok {
		if _, hasID := body["id"]; !hasID {
			return "devices"
		}
	}
	if t, ok := body["type"].(string); ok {
		switch t {
		case "sensor":
			return "sensors"
		case "actuator":
			return "actuators"
		}
	}
	return ""
}

// requestSelectAll asks the router for a full system/select "all" dump
// so the Snapshot Store can become usable without waiting on announce
// traffic alone (spec.md §4.8/§4.9).
func requestSelectAll(ctx context.Context, b *broker.Broker, service string, logger *slog.Logger) {
	body, err := json.Marshal(map[string]any{"request": "all"})
	if err != nil {
		logger.Error("failed to encode select-all request", "error", err)
		return
	}
	if err := b.Publish(ctx, "system/select/"+service, body, 1, false); err != nil {
		logger.Warn("failed to publish select-all request", "error", err)
	}
}

// buildSetPayload converts an Stage-C intent.Command into the JSON
// body system/set/<service> expects.
func buildSetPayload(cmd *intent.Command, service string) ([]byte, error) {
	m := map[string]any{
		"device": cmd.Device,
		"type":   cmd.Type,
		"id":     cmd.ID,
	}
	if cmd.State != nil {
		m["state"] = *cmd.State
	}
	if cmd.Enable != nil {
		m["enable"] = *cmd.Enable
	}
	if cmd.Command != "" {
		m["command"] = cmd.Command
	}
	if cmd.Speed != nil {
		m["speed"] = *cmd.Speed
	}
	return json.Marshal(m)
}
