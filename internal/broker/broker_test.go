package broker

import (
	"testing"

	"github.com/hearth-iot/hearth/internal/config"
)

func defaultCfg() config.MQTTConfig {
	return config.MQTTConfig{Host: "localhost", Port: 1883, KeepAlive: 30}
}

func TestMatchesTopicFilter(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"announce/+/+/+", "announce/esp_salon/sensor/3", true},
		{"announce/+/+/+", "announce/esp_salon/sensor", false},
		{"announce/+/+/+", "announce/esp_salon/sensor/3/extra", false},
		{"system/notify/#", "system/notify/esp_salon/announce", true},
		{"system/notify/#", "system/notify/set", true},
		{"system/set/+", "system/set/intent-service", true},
		{"system/set/+", "system/get/intent-service", false},
	}
	for _, tt := range tests {
		if got := MatchesTopicFilter(tt.filter, tt.topic); got != tt.want {
			t.Errorf("MatchesTopicFilter(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTPDSubscriptions_CoversGrammar(t *testing.T) {
	topics := []string{
		"announce/esp_salon/sensor/3",
		"update/esp_puerta/actuator/0",
		"alert/esp_salon/sensor/3",
		"response/esp_salon/actuator/1",
		"system/set/intent-service",
		"system/get/intent-service",
		"system/select/telegram-service",
		"system/notify/esp_salon/announce",
		"system/notify/set",
	}
	for _, topic := range topics {
		matched := false
		for _, sub := range TPDSubscriptions {
			if MatchesTopicFilter(sub.Topic, topic) {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("topic %q matched no TPDSubscriptions filter", topic)
		}
	}
}

func TestNew_GeneratesClientIDWhenEmpty(t *testing.T) {
	b := New(defaultCfg(), "", nil, nil)
	if b.clientID == "" {
		t.Error("expected a generated client ID")
	}
}

func TestNew_KeepsExplicitClientID(t *testing.T) {
	b := New(defaultCfg(), "fixed-id", nil, nil)
	if b.clientID != "fixed-id" {
		t.Errorf("clientID = %q, want fixed-id", b.clientID)
	}
}
