// Package config loads the device configuration from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Transport names accepted in Config.Transport.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Config is the device configuration.
type Config struct {
	Transport string          `yaml:"transport"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Audio     AudioConfig     `yaml:"audio"`
	OTA       OTAConfig       `yaml:"ota"`

	// Prompts maps alert messages to local prompt files played when the
	// alert fires.
	Prompts map[string]string `yaml:"prompts,omitempty"`
}

// WebSocketConfig configures the websocket transport.
type WebSocketConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token,omitempty"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	PublishTopic   string `yaml:"publish_topic"`
	SubscribeTopic string `yaml:"subscribe_topic"`
}

// AudioConfig configures the audio pipelines.
type AudioConfig struct {
	// FrameDurationMs is the opus frame duration in milliseconds.
	FrameDurationMs int `yaml:"frame_duration_ms"`
}

// OTAConfig configures the firmware update client.
type OTAConfig struct {
	VersionURL string `yaml:"version_url,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Transport: TransportWebSocket,
		Audio:     AudioConfig{FrameDurationMs: 60},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrReset loads the configuration at path. A missing or corrupt
// file is replaced with defaults, which are then returned; the device
// continues with a clean configuration rather than failing to boot.
func LoadOrReset(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	cfg = Default()
	data, merr := yaml.Marshal(cfg)
	if merr != nil {
		return nil, fmt.Errorf("config: marshal defaults: %w", merr)
	}
	if werr := os.WriteFile(path, data, 0o644); werr != nil {
		return nil, fmt.Errorf("config: reset %s: %w", path, werr)
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket:
		if c.WebSocket.URL == "" {
			return fmt.Errorf("websocket.url is required")
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if c.MQTT.PublishTopic == "" || c.MQTT.SubscribeTopic == "" {
			return fmt.Errorf("mqtt.publish_topic and mqtt.subscribe_topic are required")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Audio.FrameDurationMs <= 0 {
		return fmt.Errorf("audio.frame_duration_ms must be positive")
	}
	return nil
}
