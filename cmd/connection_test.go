// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type delivery struct {
	topic   string
	payload string
}

func collect(ch chan<- delivery) MessageHandler {
	return func(topic string, payload []byte) {
		ch <- delivery{topic: topic, payload: string(payload)}
	}
}

func TestReadLines(t *testing.T) {
	input := strings.Join([]string{
		"boot: observer v1.4",
		`{"raw":"0000000000"}`,
		"",
		`   {"raw":"675C1D1000"}   `,
		"[mesh] rx 41 bytes",
	}, "\r\n")

	ch := make(chan delivery, 10)
	if err := readLines(strings.NewReader(input), topicSerial, collect(ch)); err != nil {
		t.Fatalf("readLines error: %v", err)
	}
	close(ch)

	var got []delivery
	for d := range ch {
		got = append(got, d)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 envelopes, got %d: %+v", len(got), got)
	}
	if got[0].payload != `{"raw":"0000000000"}` || got[1].payload != `{"raw":"675C1D1000"}` {
		t.Errorf("unexpected payloads: %+v", got)
	}
	if got[0].topic != topicSerial {
		t.Errorf("expected topic %q, got %q", topicSerial, got[0].topic)
	}
}

func TestReadLines_PayloadNotReused(t *testing.T) {
	input := `{"a":1}` + "\n" + `{"b":2}` + "\n"
	var payloads [][]byte
	err := readLines(strings.NewReader(input), topicSerial, func(_ string, payload []byte) {
		payloads = append(payloads, payload)
	})
	if err != nil {
		t.Fatalf("readLines error: %v", err)
	}
	if len(payloads) != 2 || string(payloads[0]) != `{"a":1}` {
		t.Errorf("earlier payload was overwritten: %q", payloads)
	}
}

func TestWebSocketSource(t *testing.T) {
	authCh := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"raw":"0000000000"}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte(`{"raw":"675C1D1000"}`))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	src := NewWebSocketSource(wsURL, "observer", "secret", false)

	ch := make(chan delivery, 10)
	if err := src.Start(collect(ch)); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer src.Close()

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish after server closed")
	}
	close(ch)

	var got []string
	for d := range ch {
		got = append(got, d.payload)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(got))
	}
	if gotAuth := <-authCh; !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("expected Basic auth header, got %q", gotAuth)
	}
	if !strings.Contains(src.Describe(), wsURL) {
		t.Errorf("Describe() = %q, want URL", src.Describe())
	}
}

func TestWebSocketSource_BadScheme(t *testing.T) {
	src := NewWebSocketSource("http://example.org/ws", "", "", false)
	if err := src.Start(func(string, []byte) {}); err == nil {
		t.Error("expected error for http:// URL")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close on unstarted source: %v", err)
	}
}

func TestOpenSource(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantType string
	}{
		{"mqtt", Config{MQTT: MQTTConfig{Broker: "localhost", Port: 1883}}, "*cmd.MQTTSource"},
		{"websocket", Config{WebSocket: WebSocketConfig{URL: "ws://localhost/ws"}}, "*cmd.WebSocketSource"},
		{"serial", Config{Serial: SerialConfig{Port: "/dev/ttyUSB0", Baud: 115200}}, "*cmd.SerialSource"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := OpenSource(&tt.cfg)
			if err != nil {
				t.Fatalf("OpenSource error: %v", err)
			}
			if got := fmt.Sprintf("%T", src); got != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, got)
			}
		})
	}

	if _, err := OpenSource(&Config{}); err == nil {
		t.Error("expected error when no connection is configured")
	}
}

func TestGetPassword_Env(t *testing.T) {
	t.Setenv("SLEEPYSTAT_PASSWORD", "hunter2")
	pw, err := GetPassword()
	if err != nil {
		t.Fatalf("GetPassword error: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("expected password from environment, got %q", pw)
	}
}
