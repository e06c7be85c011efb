// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sleepy

import (
	"fmt"
	"strconv"
	"strings"
)

const reportRule = "======================================================================"

// Decryption help shown for packets left encrypted
const (
	encryptedWarning = "This packet appears to be ENCRYPTED (private channel). " +
		"Decryption requires the PSK (Pre-Shared Key) configured on the device."
	helpAlgorithm    = "AES-128 or AES-256 (depending on PSK length)"
	helpPSKFormat    = "Base64-encoded, 16 or 32 bytes"
	helpHowToDecrypt = "The entire payload (all bytes) is encrypted using the channel's PSK. " +
		"You need the same PSK that was configured on the transmitting device to decrypt."
	helpDeviceConfig = "Check device settings for 'private_channel_psk' or use CLI command 'channel' to view/set"

	noteDecryptFailed = "Auto-decryption was attempted but failed. " +
		"The PSK may be incorrect, or the encryption mode may not be supported."
	noteDecrypted = "Packet was successfully decrypted using the provided PSK."
)

// FormatMessage renders a parsed message as a human-readable report
func FormatMessage(m *Message) string {
	var s strings.Builder
	env := m.Envelope

	s.WriteString("\n" + reportRule + "\n")
	s.WriteString("MQTT PACKET DECODER - Sleepy Sensor\n")
	s.WriteString(reportRule + "\n")

	s.WriteString("\nPACKET INFO:\n")
	writeField(&s, "origin", env.Origin, "")
	writeField(&s, "origin_id", env.OriginID, "")
	writeField(&s, "timestamp", env.Timestamp, "")
	writeField(&s, "direction", env.Direction, "")
	writeField(&s, "packet_type", env.PacketType, "")
	writeField(&s, "route", env.Route, "")

	s.WriteString("\nSIGNAL INFO:\n")
	writeField(&s, "SNR", env.SNR, " dB")
	writeField(&s, "RSSI", env.RSSI, " dBm")
	writeField(&s, "score", env.Score, "")
	writeField(&s, "duration", env.Duration, " ms")

	s.WriteString("\nPAYLOAD:\n")
	switch {
	case m.PayloadErr != nil:
		fmt.Fprintf(&s, "  Error: %v\n", m.PayloadErr)
	case m.Payload != nil:
		s.WriteString(FormatPacket(m.Payload))
	default:
		s.WriteString("  (no raw payload)\n")
	}

	if env.Hash != nil && *env.Hash != "" {
		fmt.Fprintf(&s, "\nHash: %s\n", *env.Hash)
	}

	s.WriteString("\n" + reportRule + "\n")
	return s.String()
}

// FormatTimestamp renders the raw RTC value with its ISO form
func FormatTimestamp(f Frame) string {
	return fmt.Sprintf("%d (%s)", f.Timestamp, f.TimestampISO())
}

// FormatPacket renders the payload section of a report
func FormatPacket(p *Packet) string {
	var s strings.Builder

	if p.Encrypted {
		s.WriteString("\n  WARNING: ENCRYPTED PACKET DETECTED!\n")
		fmt.Fprintf(&s, "  %s\n", encryptedWarning)
		s.WriteString("\n  DECRYPTION INFO:\n")
		fmt.Fprintf(&s, "     Algorithm: %s\n", helpAlgorithm)
		fmt.Fprintf(&s, "     PSK Format: %s\n", helpPSKFormat)
		fmt.Fprintf(&s, "     How to decrypt: %s\n", helpHowToDecrypt)
		fmt.Fprintf(&s, "     Device config: %s\n\n", helpDeviceConfig)
	}

	fmt.Fprintf(&s, "  RTC Timestamp  : %s\n", FormatTimestamp(p.Frame))
	fmt.Fprintf(&s, "  Flags          : %s\n", p.FlagsString())
	fmt.Fprintf(&s, "  Encrypted      : %s\n", formatBool(p.Encrypted))

	if p.DecryptionAttempted {
		if p.DecryptionSuccessful {
			s.WriteString("  Decryption     : SUCCESS\n")
		} else {
			s.WriteString("  Decryption     : FAILED\n")
		}
	}

	if note := DecryptionNote(p); note != "" {
		fmt.Fprintf(&s, "  Note           : %s\n", note)
	}

	fmt.Fprintf(&s, "  Sensor Count   : %d\n", p.SensorCount())

	if len(p.Readings) > 0 && !p.Encrypted {
		s.WriteString("\n  SENSOR READINGS:\n")
		for i, r := range p.Readings {
			fmt.Fprintf(&s, "\n    [%d] Channel %d: %s\n", i+1, r.Channel, r.Name)
			fmt.Fprintf(&s, "        Type  : %s\n", r.TypeString())
			if r.Value.Shape() == ShapeScalar {
				fmt.Fprintf(&s, "        Value : %s\n", FormatReading(r))
				continue
			}
			s.WriteString("        Value :\n")
			for _, f := range valueFields(r.Value) {
				fmt.Fprintf(&s, "          %s: %s\n", f.name, f.value)
			}
		}
	}

	return s.String()
}

// DecryptionNote explains the decryption outcome, or returns "" when
// decryption was not attempted
func DecryptionNote(p *Packet) string {
	switch {
	case p.DecryptionSuccessful:
		return noteDecrypted
	case p.DecryptionAttempted:
		return noteDecryptFailed
	}
	return ""
}

// FormatReading renders a reading's value with its unit on one line
func FormatReading(r Reading) string {
	value := FormatValue(r.Value)
	if r.Value.Shape() == ShapeScalar && r.Unit != "" {
		return value + " " + r.Unit
	}
	return value
}

// FormatValue renders a value compactly, e.g. "25" or "x=0.1 y=0 z=-1"
func FormatValue(v Value) string {
	if s, ok := v.(Scalar); ok {
		return formatFloat(float64(s))
	}

	fields := valueFields(v)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.name+"="+f.value)
	}
	return strings.Join(parts, " ")
}

type namedField struct {
	name  string
	value string
}

func valueFields(v Value) []namedField {
	switch val := v.(type) {
	case GPS:
		return []namedField{
			{"latitude", formatFloat(val.Latitude)},
			{"longitude", formatFloat(val.Longitude)},
			{"altitude", formatFloat(val.Altitude)},
		}
	case Vector:
		return []namedField{
			{"x", formatFloat(val.X)},
			{"y", formatFloat(val.Y)},
			{"z", formatFloat(val.Z)},
		}
	case Colour:
		return []namedField{
			{"r", strconv.Itoa(int(val.R))},
			{"g", strconv.Itoa(int(val.G))},
			{"b", strconv.Itoa(int(val.B))},
		}
	case Scalar:
		return []namedField{{"value", formatFloat(float64(val))}}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// writeField writes "  key            : value" for present, non-empty fields
func writeField(s *strings.Builder, key string, value *string, unit string) {
	if value == nil || *value == "" {
		return
	}
	fmt.Fprintf(s, "  %-15s: %s%s\n", key, *value, unit)
}
