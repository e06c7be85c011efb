// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Machine-readable views shared by the JSON and CBOR encoders

type frameView struct {
	Timestamp    uint32 `json:"timestamp" cbor:"timestamp"`
	TimestampISO string `json:"timestamp_iso" cbor:"timestamp_iso"`
	Flags        uint8  `json:"flags" cbor:"flags"`
}

type readingView struct {
	Channel uint8  `json:"channel" cbor:"channel"`
	Tag     uint8  `json:"tag" cbor:"tag"`
	Type    string `json:"type" cbor:"type"`
	Name    string `json:"name" cbor:"name"`
	Unit    string `json:"unit" cbor:"unit"`
	Value   Value  `json:"value" cbor:"value"`
}

type packetView struct {
	Frame                frameView     `json:"frame" cbor:"frame"`
	Encrypted            bool          `json:"encrypted" cbor:"encrypted"`
	DecryptionAttempted  bool          `json:"decryption_attempted" cbor:"decryption_attempted"`
	DecryptionSuccessful bool          `json:"decryption_successful" cbor:"decryption_successful"`
	SensorCount          int           `json:"sensor_count" cbor:"sensor_count"`
	Readings             []readingView `json:"readings" cbor:"readings"`
}

type packetInfoView struct {
	Origin     *string `json:"origin" cbor:"origin"`
	OriginID   *string `json:"origin_id" cbor:"origin_id"`
	Timestamp  *string `json:"timestamp" cbor:"timestamp"`
	Direction  *string `json:"direction" cbor:"direction"`
	PacketType *string `json:"packet_type" cbor:"packet_type"`
	Route      *string `json:"route" cbor:"route"`
}

type signalInfoView struct {
	SNR      *string `json:"SNR" cbor:"SNR"`
	RSSI     *string `json:"RSSI" cbor:"RSSI"`
	Score    *string `json:"score" cbor:"score"`
	Duration *string `json:"duration" cbor:"duration"`
}

type payloadErrorView struct {
	Error string  `json:"error" cbor:"error"`
	Raw   *string `json:"raw" cbor:"raw"`
}

type messageView struct {
	PacketInfo packetInfoView `json:"packet_info" cbor:"packet_info"`
	SignalInfo signalInfoView `json:"signal_info" cbor:"signal_info"`
	Payload    any            `json:"payload" cbor:"payload"`
	Hash       *string        `json:"hash" cbor:"hash"`
}

func (p *Packet) view() packetView {
	readings := make([]readingView, 0, len(p.Readings))
	for _, r := range p.Readings {
		readings = append(readings, readingView{
			Channel: r.Channel,
			Tag:     r.Type,
			Type:    r.TypeString(),
			Name:    r.Name,
			Unit:    r.Unit,
			Value:   r.Value,
		})
	}
	return packetView{
		Frame: frameView{
			Timestamp:    p.Frame.Timestamp,
			TimestampISO: p.Frame.TimestampISO(),
			Flags:        p.Frame.Flags,
		},
		Encrypted:            p.Encrypted,
		DecryptionAttempted:  p.DecryptionAttempted,
		DecryptionSuccessful: p.DecryptionSuccessful,
		SensorCount:          len(p.Readings),
		Readings:             readings,
	}
}

func (m *Message) view() messageView {
	env := m.Envelope
	v := messageView{
		PacketInfo: packetInfoView{
			Origin:     env.Origin,
			OriginID:   env.OriginID,
			Timestamp:  env.Timestamp,
			Direction:  env.Direction,
			PacketType: env.PacketType,
			Route:      env.Route,
		},
		SignalInfo: signalInfoView{
			SNR:      env.SNR,
			RSSI:     env.RSSI,
			Score:    env.Score,
			Duration: env.Duration,
		},
		Payload: struct{}{},
		Hash:    env.Hash,
	}

	switch {
	case m.PayloadErr != nil:
		v.Payload = payloadErrorView{Error: m.PayloadErr.Error(), Raw: env.Raw}
	case m.Payload != nil:
		v.Payload = m.Payload.view()
	}
	return v
}

// MarshalJSON implements json.Marshaler
func (p *Packet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.view())
}

// MarshalJSON implements json.Marshaler
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.view())
}

// EncodeCBOR encodes a *Packet or *Message with the same field layout as
// its JSON form
func EncodeCBOR(v any) ([]byte, error) {
	var target any
	switch val := v.(type) {
	case *Packet:
		target = val.view()
	case *Message:
		target = val.view()
	default:
		return nil, fmt.Errorf("cannot CBOR encode %T", v)
	}

	data, err := cbor.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}
