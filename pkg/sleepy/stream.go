// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import "fmt"

// Reading is one decoded telemetry record
type Reading struct {
	Channel uint8
	Type    uint8
	Name    string
	Unit    string
	Value   Value
}

// TypeString returns the data type as a hex literal, e.g. "0x67"
func (r Reading) TypeString() string {
	return fmt.Sprintf("0x%02X", r.Type)
}

// DecodeStream decodes an LPP telemetry stream into readings.
//
// It never fails. Decoding stops at the end marker (channel 0), at an unknown
// data type, or when the remaining bytes cannot hold the next record; readings
// decoded up to that point are returned.
func DecodeStream(data []byte) []Reading {
	readings := []Reading{}
	i := 0

	for i+MinRecordOverhead <= len(data) {
		channel := data[i]
		dataType := data[i+1]
		i += MinRecordOverhead

		if channel == ChannelEnd {
			break
		}

		info, ok := LookupType(dataType)
		if !ok {
			break
		}
		if i+info.Size > len(data) {
			break
		}

		value, err := DecodeValue(dataType, data[i:i+info.Size])
		if err != nil {
			break
		}
		i += info.Size

		readings = append(readings, Reading{
			Channel: channel,
			Type:    dataType,
			Name:    info.Name,
			Unit:    info.Unit,
			Value:   value,
		})
	}

	return readings
}

// scanTelemetryEnd walks the telemetry records of a decrypted frame to find
// where real data stops and zero padding begins. It returns the frame length
// to keep, or len(data) when no record boundary past the header was found.
func scanTelemetryEnd(data []byte) int {
	if len(data) < FrameHeaderSize {
		return len(data)
	}

	pos := FrameHeaderSize
	for pos < len(data) {
		channel := data[pos]

		// Keep the end marker itself
		if channel == ChannelEnd {
			return pos + 1
		}

		// Past the last legal channel: padding or garbage
		if channel > MaxChannel {
			break
		}

		if pos+MinRecordOverhead > len(data) {
			break
		}

		info, ok := LookupType(data[pos+1])
		if !ok {
			break
		}
		pos += MinRecordOverhead + info.Size
	}

	if pos > FrameHeaderSize {
		return min(pos, len(data))
	}
	return len(data)
}
