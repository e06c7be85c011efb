// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

// LooksEncrypted reports whether a packet that was decoded as plaintext is
// more likely ciphertext.
//
// Only packets with telemetry bytes that yielded no readings are considered.
// Any one of these marks the packet as encrypted:
//   - the first telemetry byte is the end marker but more than 2 bytes follow
//   - the timestamp is outside the plausible range
//   - more than 5 telemetry bytes, and distinct byte values exceed 60% of them
//
// The distinct byte ratio is a coarse entropy proxy. Short or sparse
// plaintext can be misclassified by it.
func LooksEncrypted(raw []byte, readings []Reading, timestamp uint32) bool {
	if len(readings) > 0 || len(raw) <= FrameHeaderSize {
		return false
	}
	telemetry := raw[FrameHeaderSize:]

	if telemetry[0] == ChannelEnd && len(telemetry) > 2 {
		return true
	}

	if !PlausibleTimestamp(timestamp) {
		return true
	}

	if len(telemetry) > entropyMinLength {
		if float64(distinctBytes(telemetry)) > float64(len(telemetry))*entropyThreshold {
			return true
		}
	}

	return false
}

func distinctBytes(data []byte) int {
	var seen [256]bool
	count := 0
	for _, b := range data {
		if !seen[b] {
			seen[b] = true
			count++
		}
	}
	return count
}
