// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"encoding/binary"
	"time"
)

// TimestampNotSet is rendered for RTC values that are not calendar times
const TimestampNotSet = "Not set"

// Frame is the fixed packet header preceding the telemetry stream
type Frame struct {
	Timestamp uint32
	Flags     uint8
}

// ParseFrame extracts the frame header from a packet
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, ErrPayloadTooShort
	}
	return Frame{
		Timestamp: binary.BigEndian.Uint32(data[0:timestampSize]),
		Flags:     data[flagsOffset],
	}, nil
}

// Time returns the RTC timestamp as UTC time. ok is false when the device
// clock was never set (zero) or the value is outside the 31-bit range.
func (f Frame) Time() (t time.Time, ok bool) {
	if f.Timestamp == 0 || uint64(f.Timestamp) >= maxRenderableTimestamp {
		return time.Time{}, false
	}
	return time.Unix(int64(f.Timestamp), 0).UTC(), true
}

// TimestampISO returns the RTC timestamp as RFC 3339, or TimestampNotSet
func (f Frame) TimestampISO() string {
	t, ok := f.Time()
	if !ok {
		return TimestampNotSet
	}
	return t.Format(time.RFC3339)
}

// PlausibleTimestamp reports whether ts falls in [2000, 2100)
func PlausibleTimestamp(ts uint32) bool {
	return ts >= MinPlausibleTimestamp && uint64(ts) < MaxPlausibleTimestamp
}

// ValidFrame is the structural validity check for plaintext packets: a
// plausible timestamp, zero flags, and (when telemetry follows) a first
// channel byte no greater than MaxChannel.
func ValidFrame(data []byte) bool {
	frame, err := ParseFrame(data)
	if err != nil {
		return false
	}
	if !PlausibleTimestamp(frame.Timestamp) {
		return false
	}
	if frame.Flags != 0x00 {
		return false
	}
	if len(data) > FrameHeaderSize && data[FrameHeaderSize] > MaxChannel {
		return false
	}
	return true
}
