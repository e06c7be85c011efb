// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the observer's JSON wrapper around a relayed packet.
// Every field is optional; nil means the field was absent or null.
type Envelope struct {
	// Packet info
	Origin     *string
	OriginID   *string
	Timestamp  *string
	Type       *string
	Direction  *string
	Time       *string
	Date       *string
	Len        *string
	PacketType *string
	Route      *string
	PayloadLen *string
	Raw        *string

	// Signal info
	SNR      *string
	RSSI     *string
	Score    *string
	Duration *string

	Hash *string
}

// Message is a parsed envelope with its decoded payload.
// PayloadErr is set when Raw is present but could not be decoded; Payload is
// nil when Raw is absent or failed to decode.
type Message struct {
	Envelope   Envelope
	Payload    *Packet
	PayloadErr error
}

// ParseEnvelope parses an observer JSON envelope without decoding the payload
func ParseEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	return &Envelope{
		Origin:     optString(fields, "origin"),
		OriginID:   optString(fields, "origin_id"),
		Timestamp:  optString(fields, "timestamp"),
		Type:       optString(fields, "type"),
		Direction:  optString(fields, "direction"),
		Time:       optString(fields, "time"),
		Date:       optString(fields, "date"),
		Len:        optString(fields, "len"),
		PacketType: optString(fields, "packet_type"),
		Route:      optString(fields, "route"),
		PayloadLen: optString(fields, "payload_len"),
		Raw:        optString(fields, "raw"),
		SNR:        optString(fields, "SNR"),
		RSSI:       optString(fields, "RSSI"),
		Score:      optString(fields, "score"),
		Duration:   optString(fields, "duration"),
		Hash:       optString(fields, "hash"),
	}, nil
}

// DecodeMessage parses an envelope and decodes its raw payload.
// Only malformed JSON fails the call; payload problems are reported in
// Message.PayloadErr.
func (d *Decoder) DecodeMessage(data []byte) (*Message, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	msg := &Message{Envelope: *env}
	if env.Raw != nil {
		msg.Payload, msg.PayloadErr = d.DecodeHex(*env.Raw)
	}
	return msg, nil
}

// optString extracts a field as text. Strings are unquoted, other JSON
// values keep their literal form, and null or missing fields yield nil.
func optString(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		s = string(raw)
		return &s
	}
	s = compact.String()
	return &s
}

// HasPayload reports whether the envelope carried a raw payload
func (m *Message) HasPayload() bool {
	return m.Envelope.Raw != nil
}
