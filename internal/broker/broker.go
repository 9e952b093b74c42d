// Package broker adapts github.com/eclipse/paho.golang/autopaho into
// the narrow publish/subscribe surface the router needs: a single
// inbound handler fed from one connection, and a Publish call usable
// from any goroutine.
package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/hearth-iot/hearth/internal/config"
)

// Handler is called for each inbound message on a subscribed topic.
// Implementations must be safe for concurrent use, though in the
// router's normal operation only one call is in flight at a time
// (§5: single-threaded dispatch).
type Handler func(topic string, payload []byte)

// Subscription is one (topic, QoS) pair the broker re-subscribes to on
// every connect, since autopaho does not remember subscriptions across
// reconnects.
type Subscription struct {
	Topic string
	QoS   byte
}

// TPDSubscriptions is the full, fixed subscription set from spec.md
// §4.1: "the router subscribes to the full set above and only those."
var TPDSubscriptions = []Subscription{
	{Topic: "announce/+/+/+", QoS: 0},
	{Topic: "update/+/+/+", QoS: 0},
	{Topic: "alert/+/+/+", QoS: 1},
	{Topic: "response/+/+/+", QoS: 1},
	{Topic: "system/set/+", QoS: 1},
	{Topic: "system/get/+", QoS: 1},
	{Topic: "system/select/+", QoS: 1},
	{Topic: "system/notify/#", QoS: 1},
}

// Broker manages one autopaho connection: connect-with-reconnect,
// re-subscription on every (re-)connect, and publish.
type Broker struct {
	cfg           config.MQTTConfig
	clientID      string
	subscriptions []Subscription
	logger        *slog.Logger
	handler       Handler
	cm            *autopaho.ConnectionManager
}

// New creates a Broker but does not connect. clientID, if empty, is
// generated as a fresh UUIDv7 per process — this module has no
// persisted-instance-identity requirement, unlike the teacher's
// file-backed instance ID.
func New(cfg config.MQTTConfig, clientID string, subs []Subscription, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if clientID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		clientID = "hearth-" + id.String()
	}
	return &Broker{
		cfg:           cfg,
		clientID:      clientID,
		subscriptions: subs,
		logger:        logger,
	}
}

// SetHandler registers the inbound message callback. Must be called
// before Start.
func (b *Broker) SetHandler(h Handler) {
	b.handler = h
}

// Start connects to the broker and blocks until ctx is cancelled.
// Reconnection is delegated to autopaho's ConnectionManager with a
// fixed 5s delay between attempts; the delay does not grow with the
// attempt count and has no cap.
func (b *Broker) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.Broker())
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:        []*url.URL{brokerURL},
		KeepAlive:         uint16(b.cfg.KeepAlive),
		ConnectRetryDelay: 5 * time.Second,
		ConnectUsername:   b.cfg.User,
		ConnectPassword:   []byte(b.cfg.Pass),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("broker connected", "broker", b.cfg.Broker())
			subCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.subscribe(subCtx, cm)
		},
		OnConnectError: func(err error) {
			b.logger.Warn("broker connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: b.clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	b.cm = cm

	if b.handler == nil {
		b.handler = func(topic string, payload []byte) {
			b.logger.Debug("no handler registered, dropping message", "topic", topic)
		}
	}

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("inbound message handler panicked",
						"topic", pr.Packet.Topic, "panic", r)
				}
			}()
			b.handler(pr.Packet.Topic, pr.Packet.Payload)
		}()
		return true, nil
	})

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("initial mqtt connection timed out, will retry in background", "error", err)
	}

	<-ctx.Done()
	return nil
}

func (b *Broker) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	if len(b.subscriptions) == 0 {
		return
	}
	opts := make([]paho.SubscribeOptions, 0, len(b.subscriptions))
	topics := make([]string, 0, len(b.subscriptions))
	for _, s := range b.subscriptions {
		opts = append(opts, paho.SubscribeOptions{Topic: s.Topic, QoS: s.QoS})
		topics = append(topics, s.Topic)
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		b.logger.Error("mqtt subscribe failed", "error", err, "topics", topics)
		return
	}
	b.logger.Info("mqtt subscribed", "topics", topics)
}

// Publish sends payload to topic at the given QoS. Fan-out
// publications (system/notify/*, system/response/*) are fire-and-forget
// per spec.md §7, so callers typically log a Publish error rather than
// propagate it.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	if b.cm == nil {
		return fmt.Errorf("broker not started")
	}
	_, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	})
	return err
}

// Stop disconnects from the broker.
func (b *Broker) Stop(ctx context.Context) error {
	if b.cm == nil {
		return nil
	}
	return b.cm.Disconnect(ctx)
}

// AwaitConnection blocks until connected or ctx expires.
func (b *Broker) AwaitConnection(ctx context.Context) error {
	if b.cm == nil {
		return fmt.Errorf("broker not started")
	}
	return b.cm.AwaitConnection(ctx)
}

// MatchesTopicFilter reports whether an MQTT topic filter (with +/#
// wildcards) matches topic. Used by tests exercising TPDSubscriptions
// without a live broker, since autopaho/paho only performs matching
// server-side.
func MatchesTopicFilter(filter, topic string) bool {
	fSegs := strings.Split(filter, "/")
	tSegs := strings.Split(topic, "/")
	for i, fs := range fSegs {
		if fs == "#" {
			return true
		}
		if i >= len(tSegs) {
			return false
		}
		if fs == "+" {
			continue
		}
		if fs != tSegs[i] {
			return false
		}
	}
	return len(fSegs) == len(tSegs)
}
