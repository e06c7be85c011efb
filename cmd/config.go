// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	defaultTopic         = "sleepy_sensor/#"
	defaultMQTTPort      = 1883
	defaultMQTTTLSPort   = 8883
	defaultBaudRate      = 115200
	defaultWorkers       = 4
	defaultQueueSize     = 256
	defaultStatsInterval = 10 * time.Second
	defaultOutput        = outputText
)

// Output formats
const (
	outputText = "text"
	outputJSON = "json"
	outputCBOR = "cbor"
)

// Config is the sleepystat configuration file
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Serial    SerialConfig    `yaml:"serial"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Listener  ListenerConfig  `yaml:"listener"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	ClientID string `yaml:"client_id"`
	TLS      bool   `yaml:"tls"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	Insecure bool   `yaml:"insecure"`
}

type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type DecoderConfig struct {
	PSK       string `yaml:"psk"`
	NoDecrypt bool   `yaml:"no_decrypt"`
}

type ListenerConfig struct {
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	Output        string        `yaml:"output"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfig reads a YAML configuration file. Defaults are not applied.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfig loads --config when given, overlays explicitly set flags
// and applies defaults
func resolveConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyFlags(fs)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies flags set on the command line over file values
func (c *Config) applyFlags(fs *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("broker", func() { c.MQTT.Broker = mqttBroker })
	set("mqtt-port", func() { c.MQTT.Port = mqttPort })
	set("topic", func() { c.MQTT.Topic = mqttTopic })
	set("mqtt-username", func() { c.MQTT.Username = mqttUsername })
	set("tls", func() { c.MQTT.TLS = mqttTLS })
	set("ca-file", func() { c.MQTT.CAFile = mqttCAFile })
	set("cert-file", func() { c.MQTT.CertFile = mqttCertFile })
	set("key-file", func() { c.MQTT.KeyFile = mqttKeyFile })
	set("insecure", func() { c.MQTT.Insecure = mqttInsecure })

	set("port", func() { c.Serial.Port = portName })
	set("baud", func() { c.Serial.Baud = baudRate })

	set("url", func() { c.WebSocket.URL = wsURL })
	set("username", func() { c.WebSocket.Username = wsUsername })
	set("no-ssl-verify", func() { c.WebSocket.NoSSLVerify = wsNoSSLVerify })

	set("psk", func() { c.Decoder.PSK = pskBase64 })
	set("no-decrypt", func() { c.Decoder.NoDecrypt = noDecrypt })

	set("metrics-addr", func() { c.Metrics.Addr = metricsAddr })

	// Command-local flags, registered only on some subcommands
	set("workers", func() { c.Listener.Workers = listenWorkers })
	set("queue-size", func() { c.Listener.QueueSize = listenQueueSize })
	set("stats-interval", func() { c.Listener.StatsInterval = listenStatsInterval })
	set("output", func() { c.Listener.Output = outputFormat })
}

func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = defaultMQTTPort
		if c.MQTT.TLS {
			c.MQTT.Port = defaultMQTTTLSPort
		}
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultTopic
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = defaultBaudRate
	}
	if c.Listener.Workers <= 0 {
		c.Listener.Workers = defaultWorkers
	}
	if c.Listener.QueueSize <= 0 {
		c.Listener.QueueSize = defaultQueueSize
	}
	if c.Listener.StatsInterval <= 0 {
		c.Listener.StatsInterval = defaultStatsInterval
	}
	if c.Listener.Output == "" {
		c.Listener.Output = defaultOutput
	}
}

func (c *Config) validate() error {
	switch c.Listener.Output {
	case outputText, outputJSON, outputCBOR:
	default:
		return fmt.Errorf("unsupported output format: %s (use text, json or cbor)", c.Listener.Output)
	}
	if c.Decoder.PSK != "" {
		if _, err := sleepy.ParseKey(c.Decoder.PSK); err != nil {
			return fmt.Errorf("decoder.psk: %w", err)
		}
	}
	if (c.MQTT.CertFile == "") != (c.MQTT.KeyFile == "") {
		return fmt.Errorf("mqtt.cert_file and mqtt.key_file must be set together")
	}
	return nil
}

// NewDecoder builds the packet decoder from the decoder section
func (c *Config) NewDecoder() (*sleepy.Decoder, error) {
	var key sleepy.Key
	if c.Decoder.PSK != "" {
		parsed, err := sleepy.ParseKey(c.Decoder.PSK)
		if err != nil {
			return nil, err
		}
		key = parsed
	}
	return sleepy.NewDecoder(key, !c.Decoder.NoDecrypt), nil
}
