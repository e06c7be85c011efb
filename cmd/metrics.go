// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the listener's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	Received        prometheus.Counter
	Decoded         prometheus.Counter
	Decrypted       prometheus.Counter
	DecryptFailures prometheus.Counter
	Failed          prometheus.Counter
	Dropped         prometheus.Counter
	Readings        *prometheus.CounterVec
	DecodeDuration  prometheus.Histogram
}

// NewMetrics registers the collectors against reg, defaulting to the global
// registry when nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	m := &Metrics{
		gatherer:        gatherer,
		Received:        counter("sleepystat_messages_received_total", "Envelopes delivered by the source."),
		Decoded:         counter("sleepystat_messages_decoded_total", "Plaintext packets decoded."),
		Decrypted:       counter("sleepystat_messages_decrypted_total", "Encrypted packets recovered with the PSK."),
		DecryptFailures: counter("sleepystat_decrypt_failures_total", "Encrypted packets left undecrypted."),
		Failed:          counter("sleepystat_messages_failed_total", "Envelopes or payloads that failed to decode."),
		Dropped:         counter("sleepystat_messages_dropped_total", "Envelopes dropped because the worker queue was full."),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepystat_readings_total",
			Help: "Sensor readings decoded, labeled by reading name.",
		}, []string{"name"}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleepystat_decode_duration_seconds",
			Help:    "Time to decode one envelope, including decryption.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Received, m.Decoded, m.Decrypted, m.DecryptFailures,
		m.Failed, m.Dropped, m.Readings, m.DecodeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one decoded message
func (m *Metrics) Observe(outcome sleepy.Outcome, msg *sleepy.Message, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.DecodeDuration.Observe(elapsed.Seconds())

	switch outcome {
	case sleepy.OutcomeDecoded:
		m.Decoded.Inc()
	case sleepy.OutcomeDecrypted:
		m.Decrypted.Inc()
	case sleepy.OutcomeEncrypted:
		m.DecryptFailures.Inc()
	case sleepy.OutcomeFailed:
		m.Failed.Inc()
	}

	if msg != nil && msg.Payload != nil {
		for _, r := range msg.Payload.Readings {
			m.Readings.WithLabelValues(r.Name).Inc()
		}
	}
}

// IncReceived counts an envelope delivered by the source
func (m *Metrics) IncReceived() {
	if m == nil {
		return
	}
	m.Received.Inc()
}

// IncDropped counts an envelope rejected by the worker pool
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// Handler exposes a ready-to-use /metrics handler
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// serveMetrics serves /metrics and /healthz on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, m *Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
