// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// MessageHandler receives one observer envelope. The payload is owned by
// the handler.
type MessageHandler func(topic string, payload []byte)

// Source delivers observer envelopes from a transport
type Source interface {
	// Start begins delivering envelopes to handler on the source's own
	// goroutine. It returns once the source is connected.
	Start(handler MessageHandler) error
	// Done is closed when the source stops delivering (connection lost
	// for good, or Close was called)
	Done() <-chan struct{}
	Close() error
	Describe() string
}

// Transport topics for sources without their own topic namespace
const (
	topicWebSocket = "websocket"
	topicSerial    = "serial"
)

// maxLineSize bounds one serial envelope line
const maxLineSize = 64 * 1024

// WebSocketSource reads envelopes from a WebSocket, one per frame
type WebSocketSource struct {
	url         string
	username    string
	password    string
	noSSLVerify bool

	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketSource creates a WebSocket source. Nothing is dialed until
// Start.
func NewWebSocketSource(wsURL, username, password string, skipSSLVerify bool) *WebSocketSource {
	return &WebSocketSource{
		url:         wsURL,
		username:    username,
		password:    password,
		noSSLVerify: skipSSLVerify,
		done:        make(chan struct{}),
	}
}

// Start dials the WebSocket with HTTP Basic auth and starts reading
func (w *WebSocketSource) Start(handler MessageHandler) error {
	// Parse and validate URL
	u, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: w.noSSLVerify,
		}
	}

	headers := http.Header{}
	if w.username != "" && w.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.username + ":" + w.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, w.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("WebSocket connection failed: %w", err)
	}
	w.conn = conn

	go w.readLoop(handler)
	return nil
}

func (w *WebSocketSource) readLoop(handler MessageHandler) {
	defer w.markDone()

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		// Observers send envelopes as text, bridges may forward them as binary
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		handler(topicWebSocket, data)
	}
}

func (w *WebSocketSource) markDone() {
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *WebSocketSource) Done() <-chan struct{} {
	return w.done
}

func (w *WebSocketSource) Close() error {
	if w.conn == nil {
		w.markDone()
		return nil
	}
	err := w.conn.Close()
	<-w.done
	return err
}

func (w *WebSocketSource) Describe() string {
	return fmt.Sprintf("WebSocket: %s", w.url)
}

// SerialSource reads newline-delimited envelopes from an observer's serial
// console
type SerialSource struct {
	portName string
	baudRate int

	port      serial.Port
	done      chan struct{}
	closeOnce sync.Once
}

func NewSerialSource(portName string, baudRate int) *SerialSource {
	return &SerialSource{
		portName: portName,
		baudRate: baudRate,
		done:     make(chan struct{}),
	}
}

// Start opens the serial port and starts reading lines
func (s *SerialSource) Start(handler MessageHandler) error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.portName, err)
	}
	s.port = port

	go func() {
		defer s.closeOnce.Do(func() { close(s.done) })
		if err := readLines(port, topicSerial, handler); err != nil {
			log.Printf("Serial read error: %v", err)
		}
	}()
	return nil
}

func (s *SerialSource) Done() <-chan struct{} {
	return s.done
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		s.closeOnce.Do(func() { close(s.done) })
		return nil
	}
	return s.port.Close()
}

func (s *SerialSource) Describe() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.portName, s.baudRate)
}

// readLines delivers each line of r that looks like a JSON object. Observer
// consoles interleave log output with envelopes; other lines are skipped.
func readLines(r io.Reader, topic string, handler MessageHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		// Scanner reuses its buffer
		payload := make([]byte, len(line))
		copy(payload, line)
		handler(topic, payload)
	}
	return scanner.Err()
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SLEEPYSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenSource creates the source selected by the configuration. MQTT takes
// precedence over WebSocket, then serial.
func OpenSource(cfg *Config) (Source, error) {
	switch {
	case cfg.MQTT.Broker != "":
		password := ""
		if cfg.MQTT.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return NewMQTTSource(cfg.MQTT, password), nil

	case cfg.WebSocket.URL != "":
		password := ""
		if cfg.WebSocket.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return NewWebSocketSource(cfg.WebSocket.URL, cfg.WebSocket.Username, password, cfg.WebSocket.NoSSLVerify), nil

	case cfg.Serial.Port != "":
		return NewSerialSource(cfg.Serial.Port, cfg.Serial.Baud), nil
	}

	return nil, fmt.Errorf("one of --broker, --url or --port must be specified")
}
