// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// JSON Output Tests
// ============================================================

func TestPacketJSON(t *testing.T) {
	packet, err := NewDecoder(nil, true).DecodePayload(samplePlaintext())
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	data, err := json.Marshal(packet)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out struct {
		Frame struct {
			Timestamp    uint32 `json:"timestamp"`
			TimestampISO string `json:"timestamp_iso"`
			Flags        uint8  `json:"flags"`
		} `json:"frame"`
		Encrypted   bool `json:"encrypted"`
		SensorCount int  `json:"sensor_count"`
		Readings    []struct {
			Channel uint8   `json:"channel"`
			Tag     uint8   `json:"tag"`
			Type    string  `json:"type"`
			Name    string  `json:"name"`
			Unit    string  `json:"unit"`
			Value   float64 `json:"value"`
		} `json:"readings"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v\n%s", err, data)
	}

	if out.Frame.Timestamp != testTimestamp {
		t.Errorf("Expected timestamp %d, got %d", testTimestamp, out.Frame.Timestamp)
	}
	if out.Frame.TimestampISO != "2024-12-13T11:40:00Z" {
		t.Errorf("Expected ISO timestamp, got %q", out.Frame.TimestampISO)
	}
	if out.SensorCount != 3 || len(out.Readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d/%d", out.SensorCount, len(out.Readings))
	}
	first := out.Readings[0]
	if first.Tag != TypeTemperature || first.Type != "0x67" || first.Value != 25 || first.Unit != "°C" {
		t.Errorf("Unexpected first reading: %+v", first)
	}
}

func TestPacketJSON_EmptyReadings(t *testing.T) {
	packet, err := NewDecoder(nil, true).DecodeHex("0000000000")
	if err != nil {
		t.Fatalf("DecodeHex error: %v", err)
	}
	data, err := json.Marshal(packet)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	readings, ok := out["readings"].([]any)
	if !ok || len(readings) != 0 {
		t.Errorf("Expected empty readings array, got %v", out["readings"])
	}
}

func TestPacketJSON_StructuredValues(t *testing.T) {
	raw := buildPacket(testTimestamp, 0, true,
		record{4, TypeGPS, []byte{0x07, 0x0C, 0xDC, 0xFF, 0x10, 0x08, 0x00, 0x92, 0xAE}},
		record{5, TypeColour, []byte{0xFF, 0x80, 0x00}},
	)
	packet, err := NewDecoder(nil, true).DecodePayload(raw)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	data, err := json.Marshal(packet)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out struct {
		Readings []struct {
			Value map[string]float64 `json:"value"`
		} `json:"readings"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(out.Readings) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(out.Readings))
	}
	if out.Readings[0].Value["latitude"] != 46.2044 {
		t.Errorf("Expected latitude 46.2044, got %v", out.Readings[0].Value["latitude"])
	}
	if out.Readings[1].Value["g"] != 128 {
		t.Errorf("Expected green 128, got %v", out.Readings[1].Value["g"])
	}
}

func TestMessageJSON(t *testing.T) {
	msg, err := NewDecoder(nil, true).DecodeMessage(envelopeWithRaw(samplePlaintext()))
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, key := range []string{"packet_info", "signal_info", "payload", "hash"} {
		if _, ok := out[key]; !ok {
			t.Errorf("Missing key %q in %s", key, data)
		}
	}
	if string(out["hash"]) != "null" {
		t.Errorf("Expected null hash, got %s", out["hash"])
	}
}

func TestMessageJSON_PayloadError(t *testing.T) {
	msg, err := NewDecoder(nil, true).DecodeMessage([]byte(`{"raw": "XYZ"}`))
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out struct {
		Payload struct {
			Error string `json:"error"`
			Raw   string `json:"raw"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if out.Payload.Error == "" || out.Payload.Raw != "XYZ" {
		t.Errorf("Expected payload error with raw, got %+v", out.Payload)
	}
}

func TestMessageJSON_NoPayload(t *testing.T) {
	msg, err := NewDecoder(nil, true).DecodeMessage([]byte(`{"origin": "Observer"}`))
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if string(out["payload"]) != "{}" {
		t.Errorf("Expected empty payload object, got %s", out["payload"])
	}
}

// ============================================================
// CBOR Output Tests
// ============================================================

func TestEncodeCBOR_Packet(t *testing.T) {
	packet, err := NewDecoder(testKey, true).DecodePayload(sampleEncrypted(testKey))
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}
	data, err := EncodeCBOR(packet)
	if err != nil {
		t.Fatalf("EncodeCBOR error: %v", err)
	}

	var out struct {
		Frame struct {
			Timestamp uint32 `cbor:"timestamp"`
		} `cbor:"frame"`
		DecryptionSuccessful bool `cbor:"decryption_successful"`
		SensorCount          int  `cbor:"sensor_count"`
		Readings             []struct {
			Name  string  `cbor:"name"`
			Value float64 `cbor:"value"`
		} `cbor:"readings"`
	}
	if err := cbor.Unmarshal(data, &out); err != nil {
		t.Fatalf("CBOR decode error: %v", err)
	}
	if out.Frame.Timestamp != testTimestamp {
		t.Errorf("Expected timestamp %d, got %d", testTimestamp, out.Frame.Timestamp)
	}
	if !out.DecryptionSuccessful {
		t.Error("Expected decryption_successful")
	}
	if out.SensorCount != 3 || len(out.Readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d/%d", out.SensorCount, len(out.Readings))
	}
	if out.Readings[1].Name != "Voltage" || out.Readings[1].Value != 3.7 {
		t.Errorf("Unexpected reading: %+v", out.Readings[1])
	}
}

func TestEncodeCBOR_Message(t *testing.T) {
	msg, err := NewDecoder(nil, true).DecodeMessage([]byte(observerEnvelope))
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	data, err := EncodeCBOR(msg)
	if err != nil {
		t.Fatalf("EncodeCBOR error: %v", err)
	}

	var out map[string]any
	if err := cbor.Unmarshal(data, &out); err != nil {
		t.Fatalf("CBOR decode error: %v", err)
	}
	if out["hash"] != "BA8A9BC45F886D9E" {
		t.Errorf("Expected hash, got %v", out["hash"])
	}
}

func TestEncodeCBOR_Unsupported(t *testing.T) {
	if _, err := EncodeCBOR("not a packet"); err == nil {
		t.Error("Expected error for unsupported type")
	}
}
