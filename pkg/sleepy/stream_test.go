// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"reflect"
	"testing"
)

// ============================================================
// Stream Decoder Tests
// ============================================================

func TestDecodeStream_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}} {
		readings := DecodeStream(data)
		if len(readings) != 0 {
			t.Errorf("DecodeStream(%X): expected 0 readings, got %d", data, len(readings))
		}
	}
}

func TestDecodeStream_PreservesOrder(t *testing.T) {
	data := buildPacket(testTimestamp, 0, true,
		record{1, TypeVoltage, u16(370)},
		record{2, TypeTemperature, u16(0x00FA)},
		record{3, TypeColour, []byte{1, 2, 3}},
		record{4, TypeHumidity, []byte{0x64}},
	)[FrameHeaderSize:]

	readings := DecodeStream(data)
	if len(readings) != 4 {
		t.Fatalf("Expected 4 readings, got %d", len(readings))
	}

	expected := []struct {
		channel  uint8
		dataType uint8
		name     string
	}{
		{1, TypeVoltage, "Voltage"},
		{2, TypeTemperature, "Temperature"},
		{3, TypeColour, "Colour"},
		{4, TypeHumidity, "Relative Humidity"},
	}
	for i, e := range expected {
		r := readings[i]
		if r.Channel != e.channel || r.Type != e.dataType || r.Name != e.name {
			t.Errorf("Reading %d: got channel=%d type=0x%02X name=%q, want channel=%d type=0x%02X name=%q",
				i, r.Channel, r.Type, r.Name, e.channel, e.dataType, e.name)
		}
	}

	if readings[1].Value != Scalar(25.0) {
		t.Errorf("Expected temperature 25.0, got %v", readings[1].Value)
	}
	if readings[1].TypeString() != "0x67" {
		t.Errorf("Expected type string 0x67, got %s", readings[1].TypeString())
	}
}

func TestDecodeStream_StopsAtEndMarker(t *testing.T) {
	data := []byte{
		0x01, TypeTemperature, 0x00, 0xFA,
		0x00, 0x00,
		0x02, TypeTemperature, 0x00, 0x64,
	}
	readings := DecodeStream(data)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading before end marker, got %d", len(readings))
	}
}

func TestDecodeStream_StopsAtUnknownType(t *testing.T) {
	data := []byte{
		0x01, TypeHumidity, 0x50,
		0x02, 0xEE, 0x01, 0x02,
		0x03, TypeHumidity, 0x50,
	}
	readings := DecodeStream(data)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading before unknown type, got %d", len(readings))
	}
}

func TestDecodeStream_StopsAtTruncatedValue(t *testing.T) {
	data := []byte{
		0x01, TypeHumidity, 0x50,
		0x02, TypeGPS, 0x01, 0x02, 0x03,
	}
	readings := DecodeStream(data)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading before truncated GPS, got %d", len(readings))
	}
}

func TestDecodeStream_TrailingSingleByte(t *testing.T) {
	data := []byte{0x01, TypeHumidity, 0x50, 0x07}
	readings := DecodeStream(data)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
}

func TestDecodeStream_Idempotent(t *testing.T) {
	data := buildPacket(testTimestamp, 0, false,
		record{1, TypeGPS, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		record{2, TypeAccelerometer, []byte{0, 1, 0, 2, 0, 3}},
	)[FrameHeaderSize:]

	first := DecodeStream(data)
	second := DecodeStream(data)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("DecodeStream should be deterministic:\n%+v\n%+v", first, second)
	}
}

// ============================================================
// Padding Scan Tests
// ============================================================

func TestScanTelemetryEnd(t *testing.T) {
	frame := buildPacket(testTimestamp, 0, false)

	tests := []struct {
		name     string
		data     []byte
		expected int
	}{
		{
			name:     "short buffer",
			data:     []byte{0x01, 0x02},
			expected: 2,
		},
		{
			name:     "end marker kept",
			data:     append(append([]byte{}, frame...), 0x01, TypeHumidity, 0x50, 0x00, 0x00, 0x00),
			expected: 9,
		},
		{
			name:     "immediate end marker",
			data:     append(append([]byte{}, frame...), 0x00, 0x00, 0x00),
			expected: 6,
		},
		{
			name:     "invalid channel stops",
			data:     append(append([]byte{}, frame...), 0x01, TypeHumidity, 0x50, 0x99, 0x00),
			expected: 8,
		},
		{
			name:     "invalid channel first keeps all",
			data:     append(append([]byte{}, frame...), 0x99, 0x00, 0x00),
			expected: 8,
		},
		{
			name:     "record overruns buffer",
			data:     append(append([]byte{}, frame...), 0x01, TypeGPS, 0x01),
			expected: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanTelemetryEnd(tt.data); got != tt.expected {
				t.Errorf("scanTelemetryEnd = %d, want %d", got, tt.expected)
			}
		})
	}
}
