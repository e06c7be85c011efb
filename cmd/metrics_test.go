// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}

	msg := &sleepy.Message{Payload: &sleepy.Packet{Readings: []sleepy.Reading{
		{Channel: 1, Name: "Temperature"},
		{Channel: 2, Name: "Temperature"},
		{Channel: 3, Name: "Voltage"},
	}}}

	m.IncReceived()
	m.IncReceived()
	m.IncDropped()
	m.Observe(sleepy.OutcomeDecoded, msg, time.Millisecond)
	m.Observe(sleepy.OutcomeDecrypted, &sleepy.Message{}, time.Millisecond)
	m.Observe(sleepy.OutcomeEncrypted, &sleepy.Message{}, time.Millisecond)
	m.Observe(sleepy.OutcomeFailed, nil, time.Millisecond)

	checks := []struct {
		name     string
		c        prometheus.Collector
		expected float64
	}{
		{"received", m.Received, 2},
		{"dropped", m.Dropped, 1},
		{"decoded", m.Decoded, 1},
		{"decrypted", m.Decrypted, 1},
		{"decrypt failures", m.DecryptFailures, 1},
		{"failed", m.Failed, 1},
		{"temperature readings", m.Readings.WithLabelValues("Temperature"), 2},
		{"voltage readings", m.Readings.WithLabelValues("Voltage"), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.expected {
			t.Errorf("%s: expected %v, got %v", c.name, c.expected, got)
		}
	}

	if samples := testutil.CollectAndCount(m.DecodeDuration); samples != 1 {
		t.Errorf("expected duration histogram to be collected once, got %d", samples)
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Error("expected error registering metrics twice")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncReceived()
	m.IncDropped()
	m.Observe(sleepy.OutcomeDecoded, nil, time.Millisecond)
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}
	m.IncReceived()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sleepystat_messages_received_total 1") {
		t.Errorf("expected received counter in exposition:\n%s", body)
	}
}
