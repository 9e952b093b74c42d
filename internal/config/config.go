// Package config handles Hearth configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	KeepAlive int    `yaml:"keepalive"`
}

// Broker returns the broker URL in the form expected by autopaho
// (tcp://host:port). Callers needing TLS should supply a host with
// scheme mqtts:// directly via the config file override.
func (m MQTTConfig) Broker() string {
	if strings.Contains(m.Host, "://") {
		return fmt.Sprintf("%s:%d", m.Host, m.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

// DBConfig holds persistence store settings. Name is the SQLite file
// path; Host/User/Pass are carried for parity with spec.md's env
// surface (DB_HOST, DB_USER, DB_PASS) but are unused by the embedded
// SQLite engine this module targets.
type DBConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	Name string `yaml:"name"`
}

// Config holds all Hearth configuration. After Load or LoadFromEnv
// returns successfully, every field is populated with either an
// explicit value or a documented default.
type Config struct {
	MQTT            MQTTConfig `yaml:"mqtt"`
	DB              DBConfig   `yaml:"db"`
	ServiceName     string     `yaml:"service_name"`
	RequireSnapshot bool       `yaml:"require_snapshot"`
	LogLevel        string     `yaml:"log_level"`
}

// LoadFromEnv builds a Config from the environment keys recognized by
// spec.md §6: MQTT_HOST, MQTT_PORT, MQTT_USER, MQTT_PASS,
// MQTT_KEEPALIVE, DB_HOST, DB_USER, DB_PASS, DB_NAME, SERVICE_NAME,
// REQUIRE_SNAPSHOT, LOG_LEVEL. Unset keys receive the same defaults as
// applyDefaults. This is the primary configuration path; Load is an
// optional layering mechanism for local development.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MQTT: MQTTConfig{
			Host:      os.Getenv("MQTT_HOST"),
			Port:      atoiOr(os.Getenv("MQTT_PORT"), 0),
			User:      os.Getenv("MQTT_USER"),
			Pass:      os.Getenv("MQTT_PASS"),
			KeepAlive: atoiOr(os.Getenv("MQTT_KEEPALIVE"), 0),
		},
		DB: DBConfig{
			Host: os.Getenv("DB_HOST"),
			User: os.Getenv("DB_USER"),
			Pass: os.Getenv("DB_PASS"),
			Name: os.Getenv("DB_NAME"),
		},
		ServiceName:     os.Getenv("SERVICE_NAME"),
		RequireSnapshot: boolOr(os.Getenv("REQUIRE_SNAPSHOT"), false),
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Load reads configuration from an optional YAML override file,
// expanding environment variables before unmarshalling (so
// "${MQTT_PASS}"-style interpolation works inside the file), then lets
// any of the env keys LoadFromEnv recognizes override the
// corresponding YAML field when set. This mirrors the teacher's
// file-first convenience layer while keeping spec.md's env-first
// configuration surface authoritative.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.overlayEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// overlayEnv lets any recognized environment variable override the
// value loaded from YAML, so a deployment can keep most settings in a
// checked-in file and inject only secrets (MQTT_PASS, DB_PASS) via
// the environment.
func (c *Config) overlayEnv() {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		c.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		c.MQTT.Port = atoiOr(v, c.MQTT.Port)
	}
	if v := os.Getenv("MQTT_USER"); v != "" {
		c.MQTT.User = v
	}
	if v := os.Getenv("MQTT_PASS"); v != "" {
		c.MQTT.Pass = v
	}
	if v := os.Getenv("MQTT_KEEPALIVE"); v != "" {
		c.MQTT.KeepAlive = atoiOr(v, c.MQTT.KeepAlive)
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		c.DB.Pass = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.Name = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("REQUIRE_SNAPSHOT"); v != "" {
		c.RequireSnapshot = boolOr(v, c.RequireSnapshot)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
// After this, callers can read any field without checking for empty
// strings or zero values.
func (c *Config) applyDefaults() {
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 30
	}
	if c.DB.Name == "" {
		c.DB.Name = "./hearth.db"
	}
	if c.ServiceName == "" {
		c.ServiceName = "hearth-router"
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
func (c *Config) Validate() error {
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt port %d out of range (1-65535)", c.MQTT.Port)
	}
	if c.MQTT.KeepAlive < 0 {
		return fmt.Errorf("mqtt keepalive %d must not be negative", c.MQTT.KeepAlive)
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db name must not be empty")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func boolOr(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
