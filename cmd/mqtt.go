// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	mqttQoS            = 0
	mqttConnectTimeout = 15 * time.Second
	mqttKeepAlive      = 60 * time.Second
	mqttDisconnectWait = 250 // milliseconds
)

// MQTTSource subscribes to observer envelopes on an MQTT broker
type MQTTSource struct {
	cfg      MQTTConfig
	password string

	client    mqtt.Client
	done      chan struct{}
	closeOnce sync.Once
}

func NewMQTTSource(cfg MQTTConfig, password string) *MQTTSource {
	return &MQTTSource{
		cfg:      cfg,
		password: password,
		done:     make(chan struct{}),
	}
}

// brokerURL returns the paho broker URL for cfg
func brokerURL(cfg MQTTConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker, cfg.Port)
}

// clientID returns the configured client ID or a unique one
func clientID(cfg MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "sleepystat-" + uuid.NewString()
}

// newTLSConfig builds the broker TLS configuration
func newTLSConfig(cfg MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CAFile != "" {
		caBytes, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// clientOptions builds the paho options. handler is invoked for every
// message on the subscribed topic.
func (m *MQTTSource) clientOptions(handler MessageHandler) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL(m.cfg)).
		SetClientID(clientID(m.cfg)).
		SetCleanSession(true).
		SetKeepAlive(mqttKeepAlive).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			m.onConnect(c, handler)
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		})

	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.password)
	}

	if m.cfg.TLS {
		tlsConfig, err := newTLSConfig(m.cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// onConnect subscribes on every (re)connect, since the session is clean
func (m *MQTTSource) onConnect(c mqtt.Client, handler MessageHandler) {
	token := c.Subscribe(m.cfg.Topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("MQTT subscribe to %s failed: %v", m.cfg.Topic, token.Error())
		return
	}
	log.Printf("MQTT subscribed to %s", m.cfg.Topic)
}

// Start connects to the broker and subscribes to the topic filter
func (m *MQTTSource) Start(handler MessageHandler) error {
	opts, err := m.clientOptions(handler)
	if err != nil {
		return err
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("MQTT connection to %s timed out", brokerURL(m.cfg))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connection to %s failed: %w", brokerURL(m.cfg), err)
	}
	return nil
}

func (m *MQTTSource) Done() <-chan struct{} {
	return m.done
}

func (m *MQTTSource) Close() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.Topic).WaitTimeout(time.Second)
		m.client.Disconnect(mqttDisconnectWait)
	}
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MQTTSource) Describe() string {
	return fmt.Sprintf("MQTT: %s (topic %s)", brokerURL(m.cfg), m.cfg.Topic)
}
