// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Thermoquad/sleepystat/pkg/sleepy"
)

// processor decodes envelopes, records statistics and metrics, and writes
// each message to out. handle is safe to call from several workers.
type processor struct {
	decoder *sleepy.Decoder
	stats   *sleepy.Statistics
	metrics *Metrics
	format  string
	verbose bool

	// onMessage, if set, is called after each envelope is decoded
	onMessage func(msg *sleepy.Message, err error, outcome sleepy.Outcome)

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

func newProcessor(decoder *sleepy.Decoder, stats *sleepy.Statistics, metrics *Metrics, out io.Writer, format string) *processor {
	return &processor{
		decoder: decoder,
		stats:   stats,
		metrics: metrics,
		format:  format,
		out:     out,
	}
}

// handle decodes one envelope. Failures are logged and counted, never fatal.
func (p *processor) handle(topic string, payload []byte) {
	start := time.Now()
	msg, err := p.decoder.DecodeMessage(payload)
	elapsed := time.Since(start)

	outcome := p.stats.Update(msg, err)
	p.metrics.Observe(outcome, msg, elapsed)

	if p.onMessage != nil {
		p.onMessage(msg, err, outcome)
	}

	if err != nil {
		log.Printf("[%s] %v", topic, err)
		return
	}
	if msg.PayloadErr != nil && p.verbose {
		log.Printf("[%s] payload: %v", topic, msg.PayloadErr)
	}

	if p.out == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writeMessage(p.out, msg, p.format); err != nil {
		log.Printf("[%s] output: %v", topic, err)
	}
}

// writeMessage writes msg in the requested output format
func writeMessage(w io.Writer, msg *sleepy.Message, format string) error {
	switch format {
	case outputJSON:
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err

	case outputCBOR:
		data, err := sleepy.EncodeCBOR(msg)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	default:
		_, err := io.WriteString(w, sleepy.FormatMessage(msg))
		return err
	}
}

// writePacket writes a bare packet in the requested output format
func writePacket(w io.Writer, packet *sleepy.Packet, format string) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(packet, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err

	case outputCBOR:
		data, err := sleepy.EncodeCBOR(packet)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	default:
		_, err := io.WriteString(w, sleepy.FormatPacket(packet))
		return err
	}
}
